package outbound

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"marketing-backend/internal/model"
)

// RateLimitError is returned when a target's rate window is full.
type RateLimitError struct {
	Target     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded, retry after %s", e.Target, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return model.ErrRateLimitExceeded }

// StatusError reports a non-2xx response from an upstream service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream responded with status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError reports an upstream body that could not be used.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "malformed upstream response: " + e.Reason
}

// UpstreamError is the terminal failure of Execute. It matches Kind
// (ErrUpstreamUnavailable or ErrUpstreamRejected) and the last attempt's error.
type UpstreamError struct {
	Target   string
	Attempts int
	Kind     error
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Target, e.Kind, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{e.Kind, e.Err} }

// IsTransient reports whether err is expected to succeed on retry:
// HTTP 429 and 5xx, timeouts, and refused or reset connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
