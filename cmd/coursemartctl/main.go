package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/coursemart/internal/catalog"
	"github.com/and161185/coursemart/internal/config"
	"github.com/and161185/coursemart/internal/deps"
	"github.com/and161185/coursemart/internal/gateway"
	"github.com/and161185/coursemart/internal/ledger"
	"github.com/and161185/coursemart/internal/storage"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app holds what the maintenance commands share. It is opened lazily so
// --help works without a database.
type app struct {
	cfg     *config.Config
	deps    *deps.Deps
	store   *storage.PostgresStorage
	ledger  *ledger.Ledger
	catalog *catalog.Catalog
}

func openApp(ctx context.Context, databaseURI string) (*app, error) {
	cfg, err := config.LoadEnvironment()
	if err != nil {
		return nil, err
	}
	if databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}
	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI is required (DATABASE_URI or --database)")
	}

	d := deps.NewDependencies(cfg.JWTSecret, "")
	store, err := storage.NewPostgreStorage(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}

	rp := gateway.NewRazorpay(gateway.Options{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
		Timeout:   cfg.GatewayTimeout,
	})

	return &app{
		cfg:     cfg,
		deps:    d,
		store:   store,
		ledger:  ledger.New(store, rp, cfg.Currency, d.Logger),
		catalog: catalog.New(store, d.Logger),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	_ = a.deps.Logger.Sync()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var databaseURI string
	rootCmd := &cobra.Command{
		Use:           "coursemartctl",
		Short:         "Maintenance tasks for the course marketplace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&databaseURI, "database", "d", "", "DB connection string, overrides DATABASE_URI")

	open := func(cmd *cobra.Command) (*app, error) {
		return openApp(cmd.Context(), databaseURI)
	}

	rootCmd.AddCommand(ordersCmd(open))
	rootCmd.AddCommand(ratingsCmd(open))
	rootCmd.AddCommand(statsCmd(open))
	rootCmd.AddCommand(usersCmd(open))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
