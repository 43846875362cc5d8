package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"

	"ordersync/internal/cache"
	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

var (
	// ErrActionInFlight rejects a second mutation for an order whose first
	// has not resolved. The UI renders this as a disabled control.
	ErrActionInFlight = errors.New("an action for this order is already in flight")
	// ErrIllegalTransition is a client-side rejection; the request never
	// reaches the backend.
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidOTP        = errors.New("OTP must be exactly 4 digits")
)

var otpPattern = regexp.MustCompile(`^[0-9]{4}$`)

// OrderAPI is the slice of the order service the dispatcher drives.
type OrderAPI interface {
	UpdateStatus(ctx context.Context, orderID uint64, action domain.Action, otp string) (domain.OrderStatus, error)
	Orders(ctx context.Context, role domain.Role) ([]domain.Order, error)
}

// Dispatcher executes order mutations with at most one in flight per order,
// and reconciles results into the cache: optimistic patch on success, then a
// background full refetch as the authoritative word (the backend rotates
// OTPs and may have side effects a patch cannot capture).
type Dispatcher struct {
	api   OrderAPI
	cache *cache.Cache
	role  domain.Role
	log   *slog.Logger

	// onTerminal fires after a successful terminal transition so the owner
	// can close the order's live subscription.
	onTerminal func(orderID uint64)

	mu       sync.Mutex
	inflight map[uint64]bool

	refetches sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithTerminalHook registers the callback fired when an order reaches a
// terminal status through this dispatcher.
func WithTerminalHook(fn func(orderID uint64)) Option {
	return func(d *Dispatcher) { d.onTerminal = fn }
}

func New(a OrderAPI, c *cache.Cache, role domain.Role, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		api:      a,
		cache:    c,
		role:     role,
		log:      logger.Nop(),
		inflight: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Processing reports whether orderID has a mutation in flight, for the UI's
// disabled state.
func (d *Dispatcher) Processing(orderID uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight[orderID]
}

// Dispatch runs one action against the backend. Validation failures and the
// in-flight guard resolve before any network call. On success the cache gets
// an optimistic patch and a background refetch reconciles; on failure the
// cache is untouched and the backend's message comes back verbatim.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID uint64, action domain.Action, otp string) error {
	target := action.TargetStatus()

	if current, ok := d.cache.Get(orderID); ok {
		if domain.Equivalent(current.Status, target) {
			// Already there; idempotent no-op.
			return nil
		}
		if !domain.CanTransition(current.Status, target) {
			d.log.Debug("rejecting illegal transition",
				"order_id", orderID, "from", current.Status, "to", target)
			return ErrIllegalTransition
		}
	}

	if action.RequiresOTP() && !otpPattern.MatchString(otp) {
		return ErrInvalidOTP
	}

	d.mu.Lock()
	if d.inflight[orderID] {
		d.mu.Unlock()
		return ErrActionInFlight
	}
	d.inflight[orderID] = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inflight, orderID)
		d.mu.Unlock()
	}()

	newStatus, err := d.api.UpdateStatus(ctx, orderID, action, otp)
	if err != nil {
		d.log.Warn("order action failed", "order_id", orderID, "action", action, "error", err)
		return err
	}

	d.cache.ApplyActionResult(orderID, newStatus)
	if newStatus.IsTerminal() && d.onTerminal != nil {
		d.onTerminal(orderID)
	}

	d.refetches.Add(1)
	go d.refetch(orderID)

	return nil
}

// refetch pulls the authoritative list after a successful mutation. It runs
// detached from the triggering call's context: the screen may navigate away
// but the reconcile should still land.
func (d *Dispatcher) refetch(orderID uint64) {
	defer d.refetches.Done()

	orders, err := d.api.Orders(context.Background(), d.role)
	if err != nil {
		// The optimistic patch stands until the next manual refresh.
		d.log.Warn("post-action refetch failed", "order_id", orderID, "error", err)
		return
	}
	d.cache.ReplaceAll(orders)
}

// Flush blocks until every background refetch has landed. Teardown and
// tests.
func (d *Dispatcher) Flush() {
	d.refetches.Wait()
}
