package integrations

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned without issuing a request when the provider's
// breaker forbids execution.
type CircuitOpenError struct {
	Provider string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: circuit breaker open", e.Provider)
}

// TimeoutError covers request timeouts and poll-loop deadline overruns.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// RateLimitedError is the terminal form of HTTP 429 after retry handling.
// RetryAfter is zero when the provider sent no usable Retry-After value.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// AuthFailedError is HTTP 401 or 403. Never retried; usually means a rotated
// or revoked key.
type AuthFailedError struct {
	Provider   string
	StatusCode int
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf("%s: authentication failed (HTTP %d)", e.Provider, e.StatusCode)
}

// ClientError is any other 4xx. The request is wrong, so it is not retried.
// Body carries the provider's error payload, already masked and truncated.
type ClientError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ServerError is a 5xx that survived retry exhaustion.
type ServerError struct {
	Provider   string
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: provider error (HTTP %d)", e.Provider, e.StatusCode)
}

// TransportError covers DNS, connect, and TLS failures.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the error kind is worth another attempt. Breaker
// rejections, auth failures, and plain client errors never are.
func Retryable(err error) bool {
	var (
		timeout     *TimeoutError
		rateLimited *RateLimitedError
		server      *ServerError
		transport   *TransportError
	)
	switch {
	case errors.As(err, &timeout),
		errors.As(err, &rateLimited),
		errors.As(err, &server),
		errors.As(err, &transport):
		return true
	}
	return false
}
