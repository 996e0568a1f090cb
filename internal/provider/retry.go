package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryProvider retries rate-limited calls with exponential backoff.
// Streams are retried only while opening; once chunks flow, errors are
// passed through.
type RetryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error
}

// WithRetry wraps p with up to attempts tries per call. attempts <= 1
// returns p unchanged.
func WithRetry(p Provider, attempts int, base time.Duration) Provider {
	if attempts <= 1 {
		return p
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &RetryProvider{
		inner:       p,
		maxAttempts: attempts,
		baseDelay:   base,
		maxDelay:    30 * time.Second,
		sleep:       sleepCtx,
	}
}

func (r *RetryProvider) Name() string { return r.inner.Name() }

func (r *RetryProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt, lastErr)); err != nil {
				return "", callErr(r.inner.Name(), err)
			}
		}
		text, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return "", err
		}
		slog.Warn("provider rate limited, retrying",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"purpose", PurposeFrom(ctx),
			"error", err,
		)
	}
	return "", lastErr
}

func (r *RetryProvider) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			if err := r.sleep(ctx, r.backoff(attempt, lastErr)); err != nil {
				return nil, callErr(r.inner.Name(), err)
			}
		}
		ch, err := r.inner.GenerateStream(ctx, prompt)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func shouldRetry(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// backoff doubles the base delay per attempt with ±20% jitter. A server
// supplied Retry-After wins when it is longer.
func (r *RetryProvider) backoff(attempt int, lastErr error) time.Duration {
	d := r.baseDelay << (attempt - 1)
	if d > r.maxDelay || d <= 0 {
		d = r.maxDelay
	}
	jitter := 0.8 + rand.Float64()*0.4
	d = time.Duration(float64(d) * jitter)

	var rl *RateLimitError
	if errors.As(lastErr, &rl) && rl.RetryAfter > d {
		d = min(rl.RetryAfter, r.maxDelay)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
