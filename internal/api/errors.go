package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a request fails with 401 and the one-shot
// session refresh did not recover it. Session handling beyond that single
// retry lives with the auth layer, not here.
var ErrUnauthorized = errors.New("session expired")

// Error is a request that reached the backend and was refused. Message holds
// the human-readable text the backend wants shown (UImessage in the
// envelope), so callers surface it verbatim.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// TransportError wraps a failure that never produced a response (DNS,
// timeout, refused connection). These are retryable from the UI's point of
// view.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
