package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrTimeout marks a request that hit the client timeout or a context deadline.
var ErrTimeout = errors.New("api: request timed out")

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method   string
	Path     string
	Response *Response
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Response.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Response.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Response.Status, body)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Response.Status
	}
	return 0
}

// IsUnauthorized reports a 401 response.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsCanceled reports a request abandoned by its caller. Deadlines are
// timeouts, not cancellations.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) && !errors.Is(err, ErrTimeout)
}

// IsTimeout reports a request that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// classify wraps transport errors, tagging timeouts with ErrTimeout while
// keeping the original chain.
func classify(req *http.Request, err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, ErrTimeout, err)
	}
	return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
}
