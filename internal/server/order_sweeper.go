package server

import (
	"context"
	"time"

	"github.com/and161185/coursemart/internal/model"
)

const sweepWorkers = 5

// OrdersExpiryControl starts the stale-order producer and its workers. They
// stop with ctx.
func (srv *Server) OrdersExpiryControl(ctx context.Context) {
	ch := make(chan model.Order, 10*sweepWorkers)
	go srv.ProduceStaleOrders(ctx, ch)

	for i := 0; i < sweepWorkers; i++ {
		go srv.ExpireOrders(ctx, ch)
	}
}

func (srv *Server) ProduceStaleOrders(ctx context.Context, ch chan<- model.Order) {
	ticker := time.NewTicker(srv.config.SweepInterval)
	defer ticker.Stop()

	for {
		srv.enqueueStale(ctx, ch)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enqueueStale queues PENDING orders older than the TTL and returns how many
// were queued. Orders that do not fit wait for the next tick.
func (srv *Server) enqueueStale(ctx context.Context, ch chan<- model.Order) int {
	orders, err := srv.services.Orders.ListStale(ctx, time.Now().Add(-srv.config.OrderTTL))
	if err != nil {
		srv.deps.Logger.Errorf("list stale orders: %v", err)
		return 0
	}

	queued, skipped := 0, 0
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return queued
		case ch <- order:
			queued++
		default:
			skipped++
		}
	}
	if skipped > 0 {
		srv.deps.Logger.Warnf("channel full, skipped %d stale orders", skipped)
	}
	return queued
}

func (srv *Server) ExpireOrders(ctx context.Context, ch <-chan model.Order) {
	for {
		select {
		case <-ctx.Done():
			return
		case order := <-ch:
			expired, err := srv.services.Orders.Expire(ctx, order)
			if err != nil {
				srv.deps.Logger.Errorf("expire order %s: %v", order.ProviderOrderRef, err)
				continue
			}
			if expired {
				srv.deps.Logger.Infof("order %s expired after %s", order.ProviderOrderRef, srv.config.OrderTTL)
			}
		}
	}
}
