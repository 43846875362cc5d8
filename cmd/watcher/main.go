package main

import (
	"context"
	"os"
	"time"

	"ordersync/internal/api"
	"ordersync/internal/cache"
	"ordersync/internal/domain"
	"ordersync/internal/services"
	"ordersync/internal/stream"
	"ordersync/pkg/config"
	"ordersync/pkg/logger"
	"ordersync/pkg/shutdown"
)

// watcher tails a store's live order feed: it seeds the local cache from the
// order list, then follows the watch stream and prints every change.
func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "watcher", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	client := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, api.WithLogger(log))
	svc := services.NewOrderService(client, services.WithLogger(log))
	store := cache.New(cache.WithLogger(log))

	orders, err := svc.Orders(ctx, domain.RoleStore)
	if err != nil {
		log.Error("initial order fetch failed", "error", err)
		os.Exit(1)
	}
	store.ReplaceAll(orders)
	log.Info("cache seeded", "orders", store.Len(), "active", len(store.Active()))

	sub := stream.WatchStore(client, stream.StoreHooks{
		OnNewOrder: func(o domain.Order) {
			if store.MergeNewOrder(o) {
				log.Info("new order", "order_id", o.ID, "total", o.TotalPrice)
			}
		},
		OnOrderUpdate: func(orderID uint64, status domain.OrderStatus) {
			if store.PatchStatus(orderID, status) {
				log.Info("order update", "order_id", orderID, "status", status)
			}
		},
	}, stream.Options{Logger: log, ReconnectDelay: cfg.ReconnectDelay})
	defer sub.Close()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			log.Info("stream health",
				"connected", sub.IsConnected(),
				"last_event", sub.LastEventAt().Format(time.RFC3339),
				"kitchen_queue", len(store.Kitchen()),
				"revenue_today", store.RevenueToday(),
			)
		}
	}
}
