package devserver

import "sync"

// hub fans order events out to connected watch streams. Payloads are
// pre-marshaled JSON; slow subscribers are dropped rather than blocked on.
type hub struct {
	mu        sync.Mutex
	orderSubs map[uint64]map[chan string]struct{}
	storeSubs map[chan string]struct{}
}

func newHub() *hub {
	return &hub{
		orderSubs: make(map[uint64]map[chan string]struct{}),
		storeSubs: make(map[chan string]struct{}),
	}
}

func (h *hub) subscribeOrder(orderID uint64) chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.orderSubs[orderID]
	if !ok {
		subs = make(map[chan string]struct{})
		h.orderSubs[orderID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribeOrder(orderID uint64, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.orderSubs[orderID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.orderSubs, orderID)
		}
	}
}

func (h *hub) subscribeStore() chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storeSubs[ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribeStore(ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.storeSubs, ch)
}

func (h *hub) broadcastOrder(orderID uint64, payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.orderSubs[orderID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *hub) broadcastStore(payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.storeSubs {
		select {
		case ch <- payload:
		default:
		}
	}
}
