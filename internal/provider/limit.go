package provider

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// LimitedProvider caps the number of in-flight calls to the wrapped
// provider. A stream holds its slot until the inner channel is drained or
// the context is canceled.
type LimitedProvider struct {
	inner Provider
	sem   *semaphore.Weighted
}

// WithLimit wraps p so that at most n calls run concurrently. n <= 0
// returns p unchanged.
func WithLimit(p Provider, n int) Provider {
	if n <= 0 {
		return p
	}
	return &LimitedProvider{inner: p, sem: semaphore.NewWeighted(int64(n))}
}

func (l *LimitedProvider) Name() string { return l.inner.Name() }

func (l *LimitedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", callErr(l.inner.Name(), err)
	}
	defer l.sem.Release(1)
	return l.inner.Generate(ctx, prompt)
}

func (l *LimitedProvider) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, callErr(l.inner.Name(), err)
	}
	in, err := l.inner.GenerateStream(ctx, prompt)
	if err != nil {
		l.sem.Release(1)
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer l.sem.Release(1)
		defer close(out)
		for c := range in {
			select {
			case out <- c:
			case <-ctx.Done():
				// Drain so the producer can exit.
				for range in {
				}
				return
			}
		}
	}()
	return out, nil
}
