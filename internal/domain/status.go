package domain

import "strings"

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
	// StatusCompleted is the alternate terminal alias used by the store
	// kitchen flow. Consumers treat it as interchangeable with DELIVERED.
	StatusCompleted OrderStatus = "COMPLETED"
	StatusUnknown   OrderStatus = "UNKNOWN"
)

// forwardPath is the strictly ordered non-terminal progression. Index
// comparisons against this slice decide whether a transition moves forward.
var forwardPath = []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered}

// ParseStatus normalizes a raw status string from the wire. The backend has
// been observed emitting mixed casing ("pending" vs "PENDING"), so comparison
// always happens on the normalized form. Unrecognized values map to
// StatusUnknown rather than silently defaulting; callers are expected to log.
func ParseStatus(raw string) OrderStatus {
	switch s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusDelivered, StatusCancelled, StatusCompleted:
		return s
	default:
		return StatusUnknown
	}
}

// IsTerminal reports whether no further transition is legal out of s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// pathIndex returns the position of s on the forward path, treating the
// COMPLETED alias as DELIVERED. ok is false for CANCELLED and UNKNOWN.
func pathIndex(s OrderStatus) (int, bool) {
	if s == StatusCompleted {
		s = StatusDelivered
	}
	for i, p := range forwardPath {
		if p == s {
			return i, true
		}
	}
	return 0, false
}

// Equivalent reports whether two statuses mean the same stage, folding the
// COMPLETED alias into DELIVERED.
func Equivalent(a, b OrderStatus) bool {
	if a == StatusCompleted {
		a = StatusDelivered
	}
	if b == StatusCompleted {
		b = StatusDelivered
	}
	return a == b
}

// CanTransition reports whether moving from one status to another is legal.
// The forward path is one-directional: a target at the same index is an
// idempotent no-op (legal), a lower index is rejected, and skipping ahead is
// rejected for client-initiated moves. CANCELLED is reachable from any
// non-terminal status. Nothing leaves a terminal status.
//
// This guards client-initiated moves only. A pushed event reporting a jump
// the client would not itself request is still applied as authoritative.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fi, ok := pathIndex(from)
	if !ok {
		return false
	}
	ti, ok := pathIndex(to)
	if !ok {
		return false
	}
	return ti == fi || ti == fi+1
}
