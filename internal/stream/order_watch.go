package stream

import (
	"context"
	"encoding/json"
	"io"

	"ordersync/internal/api"
	"ordersync/internal/domain"
)

// OrderSubscription tracks a single order's status in real time. It starts
// from the status the screen already knows and updates on every pushed
// event. Reaching a terminal status closes the connection for good: no
// further events are expected.
type OrderSubscription struct {
	*subscription
	orderID uint64
	status  domain.OrderStatus
}

// WatchOrder opens the per-order watch stream and begins tracking.
func WatchOrder(client Streamer, orderID uint64, initial domain.OrderStatus, opts Options) *OrderSubscription {
	base, ctx := newSubscription(opts)
	s := &OrderSubscription{
		subscription: base,
		orderID:      orderID,
		status:       initial,
	}
	go s.run(ctx, client)
	return s
}

// Status is the latest known status for the tracked order.
func (s *OrderSubscription) Status() domain.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *OrderSubscription) run(ctx context.Context, client Streamer) {
	defer close(s.done)
	path := api.EndpointOrderWatch(s.orderID)

	for {
		body, err := client.Watch(ctx, path)
		if err != nil {
			s.setConnected(false)
			if s.isClosed() {
				return
			}
			s.log.Warn("order watch connect failed", "order_id", s.orderID, "error", err)
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.setConnected(true)
		s.log.Debug("order watch connected", "order_id", s.orderID)

		terminal := s.consume(body)
		body.Close()
		s.setConnected(false)

		if terminal || s.isClosed() {
			return
		}
		if !s.wait(ctx) {
			return
		}
	}
}

// consume processes frames until the stream ends. Returns true when a
// terminal status arrived, which ends the subscription entirely.
func (s *OrderSubscription) consume(body io.ReadCloser) bool {
	terminal := false
	err := readFrames(body, func(f frame) bool {
		if s.isClosed() {
			return false
		}
		s.touch()
		if f.heartbeat {
			return true
		}

		var evt domain.OrderEvent
		if err := json.Unmarshal([]byte(f.data), &evt); err != nil {
			s.log.Warn("dropping malformed order event", "order_id", s.orderID, "error", err)
			return true
		}
		if evt.Status == "" {
			return true
		}

		next := domain.ParseStatus(evt.Status)
		if next == domain.StatusUnknown {
			s.log.Warn("dropping unknown pushed status", "order_id", s.orderID, "status", evt.Status)
			return true
		}

		// Server state is authoritative, even when the jump is one the
		// client would never request itself.
		s.mu.Lock()
		s.status = next
		s.mu.Unlock()

		if next.IsTerminal() {
			terminal = true
			return false
		}
		return true
	})
	if err != nil && !s.isClosed() {
		s.log.Warn("order watch stream error", "order_id", s.orderID, "error", err)
	}
	return terminal
}
