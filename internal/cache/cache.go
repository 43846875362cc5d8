package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

// Cache is the UI-facing set of known orders. Three writers feed it: full
// refetches (authoritative), live push events (best-effort patches between
// refetches), and optimistic patches after a successful action call. It is
// owned by the screen that created it and guarded for concurrent access from
// stream callbacks and dispatcher results.
type Cache struct {
	mu          sync.Mutex
	log         *slog.Logger
	now         func() time.Time
	orders      []*domain.Order // newest-first
	index       map[uint64]*domain.Order
	provisional map[uint64]bool
}

type Option func(*Cache)

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithNow overrides the clock used by date-scoped views. Tests only.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		log:         logger.Nop(),
		now:         time.Now,
		index:       make(map[uint64]*domain.Order),
		provisional: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MergeNewOrder inserts a pushed order at the front of the list. A second
// push or a refetch race delivering the same identifier is a no-op, so the
// order appears exactly once. Reports whether an insert happened.
func (c *Cache) MergeNewOrder(o domain.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[o.ID]; exists {
		return false
	}
	stored := o
	c.orders = append([]*domain.Order{&stored}, c.orders...)
	c.index[o.ID] = &stored
	return true
}

// PatchStatus updates only the status of a known order. A miss is a no-op;
// the order will arrive with the next full refetch. Unknown statuses are
// logged and dropped rather than stored.
func (c *Cache) PatchStatus(orderID uint64, status domain.OrderStatus) bool {
	if status == domain.StatusUnknown {
		c.log.Warn("dropping patch with unknown status", "order_id", orderID)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.index[orderID]
	if !ok {
		return false
	}
	o.Status = status
	if status.IsTerminal() {
		o.OTP = ""
	}
	// A push is server truth, so it supersedes any provisional local patch.
	delete(c.provisional, orderID)
	return true
}

// ApplyActionResult records the outcome of a successful local mutation ahead
// of push confirmation. The patch is tagged provisional until the next
// authoritative refetch or push overwrites it.
func (c *Cache) ApplyActionResult(orderID uint64, status domain.OrderStatus) bool {
	if status == domain.StatusUnknown {
		c.log.Warn("dropping action result with unknown status", "order_id", orderID)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.index[orderID]
	if !ok {
		// The screen may be gone and the order evicted by the time a slow
		// call resolves. Discard silently.
		return false
	}
	o.Status = status
	if status.IsTerminal() {
		o.OTP = ""
	}
	c.provisional[orderID] = true
	return true
}

// Provisional reports whether the order's current status came from a local
// optimistic patch that has not yet been confirmed.
func (c *Cache) Provisional(orderID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provisional[orderID]
}

// ReplaceAll swaps in the server's current list wholesale. This is the
// conflict-resolution source of truth; every provisional tag is cleared.
func (c *Cache) ReplaceAll(orders []domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orders = make([]*domain.Order, 0, len(orders))
	c.index = make(map[uint64]*domain.Order, len(orders))
	c.provisional = make(map[uint64]bool)
	for i := range orders {
		stored := orders[i]
		c.orders = append(c.orders, &stored)
		c.index[stored.ID] = &stored
	}
	sort.SliceStable(c.orders, func(i, j int) bool {
		return c.orders[i].CreatedAt.After(c.orders[j].CreatedAt)
	})
}

func (c *Cache) Get(orderID uint64) (domain.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.index[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

// Snapshot returns all orders newest-first.
func (c *Cache) Snapshot() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyFiltered(func(*domain.Order) bool { return true })
}

// Active returns non-terminal orders newest-first.
func (c *Cache) Active() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyFiltered(func(o *domain.Order) bool { return !o.Status.IsTerminal() })
}

// Kitchen returns non-terminal orders oldest-first: the store works the
// queue in arrival order.
func (c *Cache) Kitchen() []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.copyFiltered(func(o *domain.Order) bool { return !o.Status.IsTerminal() })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type HistoryFilter int

const (
	HistoryAll HistoryFilter = iota
	HistoryToday
)

// History returns terminal orders newest-first, optionally scoped to today.
func (c *Cache) History(filter HistoryFilter) []domain.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.now()
	return c.copyFiltered(func(o *domain.Order) bool {
		if !o.Status.IsTerminal() {
			return false
		}
		if filter == HistoryToday && !sameDay(o.CreatedAt, today) {
			return false
		}
		return true
	})
}

// RevenueToday sums the totals of orders delivered today. Cancelled orders
// never count.
func (c *Cache) RevenueToday() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.now()
	var total int64
	for _, o := range c.orders {
		if o.Status != domain.StatusDelivered && o.Status != domain.StatusCompleted {
			continue
		}
		if sameDay(o.CreatedAt, today) {
			total += o.TotalPrice
		}
	}
	return total
}

// copyFiltered must be called with the mutex held. Preserves slice order,
// which is newest-first.
func (c *Cache) copyFiltered(keep func(*domain.Order) bool) []domain.Order {
	out := make([]domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
