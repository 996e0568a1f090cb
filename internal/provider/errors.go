package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable means no configured provider has the requested capability.
var ErrUnavailable = errors.New("no provider available")

// CallError wraps a failure returned by a configured provider: network
// errors, timeouts and remote errors alike.
type CallError struct {
	Provider string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// RateLimitError is a retryable call failure (HTTP 429 or equivalent).
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func callErr(name string, err error) error {
	var ce *CallError
	if errors.As(err, &ce) {
		return err
	}
	return &CallError{Provider: name, Err: err}
}
