package stream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ordersync/pkg/logger"
)

// Streamer opens a long-lived server-push connection. Satisfied by
// *api.Client.
type Streamer interface {
	Watch(ctx context.Context, path string) (io.ReadCloser, error)
}

// Options tunes a subscription. Zero values get defaults.
type Options struct {
	Logger *slog.Logger
	// ReconnectDelay is the fixed pause before re-dialing after a transport
	// error. This stands in for the transport auto-retry of the original
	// client; there is deliberately no backoff schedule on top of it.
	ReconnectDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 3 * time.Second
	}
	return o
}

// subscription holds the state shared by both watch kinds. The run goroutine
// is the only writer of connected/lastEvent and the only caller of hooks;
// everything else just reads under the mutex. Once closed is set no hook ever
// fires again.
type subscription struct {
	mu        sync.Mutex
	closed    bool
	connected bool
	lastEvent time.Time

	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger
	opts   Options
}

func newSubscription(opts Options) (*subscription, context.Context) {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
		log:    opts.Logger,
		opts:   opts,
	}, ctx
}

// IsConnected reports current connection health so the UI can show a
// reconnecting indicator.
func (s *subscription) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// LastEventAt is the arrival time of the most recent frame, heartbeats
// included.
func (s *subscription) LastEventAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// Done is closed when the subscription has fully stopped: no further reads,
// no further hook invocations.
func (s *subscription) Done() <-chan struct{} {
	return s.done
}

// Close tears the connection down and waits for the reader goroutine to
// exit, so after it returns no callback will be invoked and no state will
// change. A hook in flight when Close is called finishes first. Must not be
// called from inside a hook.
func (s *subscription) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscription) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *subscription) touch() {
	s.mu.Lock()
	s.lastEvent = time.Now()
	s.mu.Unlock()
}

// wait sleeps for the reconnect delay, returning false if the subscription
// was closed in the meantime.
func (s *subscription) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.opts.ReconnectDelay):
		return !s.isClosed()
	}
}

// frame is one unit of the push protocol: either a heartbeat comment or a
// JSON payload.
type frame struct {
	heartbeat bool
	data      string
}

// readFrames consumes SSE-style framing from r and hands each frame to emit.
// Lines starting with ':' are heartbeats. 'data:' lines accumulate until a
// blank line dispatches them; bare JSON lines are tolerated and dispatched
// as-is, matching what the backend actually sends. emit returning false
// stops the read loop cleanly (terminal status reached).
func readFrames(r io.Reader, emit func(frame) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return true
		}
		f := frame{data: strings.Join(data, "\n")}
		data = data[:0]
		return emit(f)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			if !emit(frame{heartbeat: true}) {
				return nil
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "retry:"):
			// Metadata fields are not used by this protocol.
		default:
			// Bare JSON line: a complete payload on its own.
			if !flush() {
				return nil
			}
			if !emit(frame{data: line}) {
				return nil
			}
		}
	}
	if !flush() {
		return nil
	}
	return scanner.Err()
}
