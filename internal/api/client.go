// Package api is the HTTP client adapter for the CRM backend.
//
// Every request carries the session headers (bearer token, JSON content type,
// Accept-Language) merged under whatever the caller already set. Failures are
// returned to the caller unchanged: there is no retry and no silent recovery.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/crmdesk/internal/otel"
	"github.com/abelbrown/crmdesk/internal/session"
)

// DefaultTimeout is the per-request ceiling.
const DefaultTimeout = 900 * time.Second

// maxBody caps how much of a response we buffer.
const maxBody = 32 << 20

// Request describes one outgoing call. Path is relative to the client's base
// URL and may already carry a query string.
type Request struct {
	Method string
	Path   string
	Body   any         // []byte and io.Reader are sent as-is, anything else as JSON
	Header http.Header // caller values win over the session defaults
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client sends requests to the backend.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	sessions session.Provider
	diag     *otel.Logger

	// onExpired is the hook point for reacting to 401s. Nothing sets it yet:
	// signing the user out on expiry is not wired up.
	onExpired func(session.Context)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRateLimit throttles outgoing requests. rps <= 0 means unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTransport swaps the underlying RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// WithDiagnostics attaches the event logger.
func WithDiagnostics(l *otel.Logger) Option {
	return func(c *Client) { c.diag = l }
}

// New creates a Client for baseURL. The session provider is consulted once
// per request for a read-only snapshot.
func New(baseURL string, sessions session.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Inf, 1),
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BuildRequest turns r into an *http.Request against baseURL using the
// session snapshot sc. It reads no global state.
func BuildRequest(ctx context.Context, baseURL string, sc session.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch b := r.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(r.Path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Authorization") == "" && sc.HasToken() {
		req.Header.Set("Authorization", "Bearer "+sc.Token)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept-Language", string(sc.LanguageOrDefault()))

	return req, nil
}

// Do sends r. A non-2xx status returns *HTTPError carrying the response;
// transport failures come back wrapped but unchanged (errors.Is still sees
// context.Canceled), and timeouts also match ErrTimeout.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	sc := c.snapshot()
	req, err := BuildRequest(ctx, c.baseURL, sc, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(req, err)
		c.trace(req, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		err = classify(req, fmt.Errorf("read response: %w", err))
		c.trace(req, resp.StatusCode, time.Since(start), err)
		return nil, err
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Method: req.Method, Path: r.Path, Response: out}
		c.trace(req, resp.StatusCode, time.Since(start), herr)
		if resp.StatusCode == http.StatusUnauthorized && c.onExpired != nil {
			c.onExpired(sc)
		}
		return nil, herr
	}

	c.trace(req, resp.StatusCode, time.Since(start), nil)
	return out, nil
}

// Get is Do with GET.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post is Do with POST and a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Header: header})
}

// Patch is Do with PATCH and a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) snapshot() session.Context {
	if c.sessions == nil {
		return session.Context{}
	}
	return c.sessions.Context()
}

func (c *Client) trace(req *http.Request, status int, dur time.Duration, err error) {
	level := otel.LevelDebug
	if err != nil && !errors.Is(err, context.Canceled) {
		level = otel.LevelWarn
	}
	c.diag.Emit(otel.Event{
		Level:  level,
		Kind:   otel.KindAPIRequest,
		Comp:   "api",
		Source: req.URL.Path,
		Query:  req.Method,
		Status: status,
		Dur:    dur,
		Err:    errText(err),
	})
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
