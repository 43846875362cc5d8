package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"ordersync/pkg/logger"
)

// Client talks to the ordering backend. Auth rides on HttpOnly cookies, so a
// shared cookie jar is attached to every request, including the watch
// streams. Session refresh on 401 happens at most once per request and is
// serialized by a client-scoped mutex rather than a package-level flag.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	watchClient *http.Client
	log         *slog.Logger

	refreshMu sync.Mutex
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		// Watch connections stay open indefinitely, so no overall timeout.
		watchClient: &http.Client{Jar: jar},
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the response convention: every JSON body carries success, and
// failures carry a display message in UImessage (or message, or error).
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UIMessage string `json:"UImessage"`
	ErrorMsg  string `json:"error"`
}

func (e envelope) displayMessage() string {
	switch {
	case e.UIMessage != "":
		return e.UIMessage
	case e.Message != "":
		return e.Message
	default:
		return e.ErrorMsg
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.refreshSession(ctx); err != nil {
			return err
		}
		resp, raw, err = c.send(ctx, method, path, body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
	}

	var env envelope
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if isJSON {
		// Tolerate an envelope that fails to parse on error paths; the HTTP
		// status alone is enough to classify the outcome.
		_ = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: env.displayMessage()}
	}
	if isJSON && !env.Success {
		return &Error{StatusCode: resp.StatusCode, Message: env.displayMessage()}
	}

	if out != nil && isJSON {
		if err := json.Unmarshal(raw, out); err != nil {
			return &TransportError{Err: err}
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}
	return resp, raw, nil
}

// refreshSession calls the cookie-based refresh endpoint once. Concurrent
// callers queue on the mutex; whoever runs second still performs its own
// refresh, which is a cheap no-op server-side once the cookie is fresh.
func (c *Client) refreshSession(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.log.Info("session expired, attempting refresh")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EndpointRefresh, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("session refresh failed", "status", resp.StatusCode)
		return ErrUnauthorized
	}
	return nil
}

// Watch opens a long-lived SSE stream. The caller owns the returned body and
// must close it; cancelling ctx also tears the connection down.
func (c *Client) Watch(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.watchClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Message: "watch stream rejected"}
	}
	return resp.Body, nil
}
