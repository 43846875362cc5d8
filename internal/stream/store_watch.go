package stream

import (
	"context"
	"encoding/json"
	"io"

	"ordersync/internal/api"
	"ordersync/internal/domain"
)

// StoreHooks receive store-watch pushes. Both are optional. They are invoked
// from the subscription's single reader goroutine, never concurrently, and
// never after Close returns.
type StoreHooks struct {
	OnNewOrder    func(domain.Order)
	OnOrderUpdate func(orderID uint64, status domain.OrderStatus)
}

// StoreSubscription listens on a store's inbound-order channel: NEW_ORDER
// pushes carry the full order, ORDER_UPDATE pushes carry id and status.
type StoreSubscription struct {
	*subscription
	hooks StoreHooks
}

// WatchStore opens the store watch stream for the authenticated store.
func WatchStore(client Streamer, hooks StoreHooks, opts Options) *StoreSubscription {
	base, ctx := newSubscription(opts)
	s := &StoreSubscription{
		subscription: base,
		hooks:        hooks,
	}
	go s.run(ctx, client)
	return s
}

func (s *StoreSubscription) run(ctx context.Context, client Streamer) {
	defer close(s.done)

	for {
		body, err := client.Watch(ctx, api.EndpointStoreWatch)
		if err != nil {
			s.setConnected(false)
			if s.isClosed() {
				return
			}
			s.log.Warn("store watch connect failed", "error", err)
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.setConnected(true)
		s.log.Debug("store watch connected")

		s.consume(body)
		body.Close()
		s.setConnected(false)

		if s.isClosed() {
			return
		}
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *StoreSubscription) consume(body io.ReadCloser) {
	err := readFrames(body, func(f frame) bool {
		if s.isClosed() {
			return false
		}
		s.touch()
		if f.heartbeat {
			return true
		}

		var evt domain.StoreEvent
		if err := json.Unmarshal([]byte(f.data), &evt); err != nil {
			s.log.Warn("dropping malformed store event", "error", err)
			return true
		}

		switch evt.Type {
		case domain.EventNewOrder:
			if evt.Order == nil {
				s.log.Warn("NEW_ORDER push without order payload")
				return true
			}
			order := *evt.Order
			order.Status = domain.ParseStatus(string(order.Status))
			if order.Status == domain.StatusUnknown {
				s.log.Warn("dropping new order with unknown status",
					"order_id", order.ID, "status", evt.Order.Status)
				return true
			}
			if s.hooks.OnNewOrder != nil {
				s.hooks.OnNewOrder(order)
			}
		case domain.EventOrderUpdate:
			status := domain.ParseStatus(evt.OrderStatus)
			if status == domain.StatusUnknown {
				s.log.Warn("dropping order update with unknown status",
					"order_id", evt.OrderID, "status", evt.OrderStatus)
				return true
			}
			if s.hooks.OnOrderUpdate != nil {
				s.hooks.OnOrderUpdate(evt.OrderID, status)
			}
		default:
			s.log.Debug("ignoring store event", "type", evt.Type)
		}
		return true
	})
	if err != nil && !s.isClosed() {
		s.log.Warn("store watch stream error", "error", err)
	}
}
