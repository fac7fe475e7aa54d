package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/coursemart/internal/catalog"
	"github.com/and161185/coursemart/internal/checkout"
	"github.com/and161185/coursemart/internal/config"
	"github.com/and161185/coursemart/internal/deps"
	"github.com/and161185/coursemart/internal/enrollment"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/ledger"
	"github.com/and161185/coursemart/internal/server"
	"github.com/and161185/coursemart/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	d := deps.NewDependencies(cfg.JWTSecret, cfg.LogFile)
	defer d.Logger.Sync()

	store, err := storage.NewPostgreStorage(ctx, cfg.DatabaseURI)
	if err != nil {
		d.Logger.Fatal(err)
	}
	defer store.Close()

	rp := gateway.NewRazorpay(gateway.Options{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
		Timeout:   cfg.GatewayTimeout,
	})
	if cfg.WebhookSecret == "" {
		d.Logger.Warn("PAYMENT_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	orders := ledger.New(store, rp, cfg.Currency, d.Logger)
	registry := enrollment.New(store, d.Logger)
	courses := catalog.New(store, d.Logger)
	payments := checkout.NewService(store, orders, registry, courses, checkout.Options{
		CallbackSecret: cfg.CallbackSecret,
		WebhookSecret:  cfg.WebhookSecret,
		PublicKey:      rp.KeyID(),
	}, d.Logger)

	srv := server.NewServer(server.Services{
		Users:    store,
		Catalog:  courses,
		Registry: registry,
		Checkout: payments,
		Orders:   orders,
		Health:   store,
	}, cfg, d)
	if err := srv.Run(ctx); err != nil {
		d.Logger.Fatal(err)
	}
}
