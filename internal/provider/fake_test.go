package provider

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeProvider returns scripted results and counts calls.
type fakeProvider struct {
	name   string
	text   string
	chunks []Chunk
	errs   []error // consumed one per call; nil entries succeed

	mu       sync.Mutex
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
	block    chan struct{}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) nextErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeProvider) enter() func() {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { f.inflight.Add(-1) }
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	defer f.enter()()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.nextErr(); err != nil {
		return "", err
	}
	return f.text, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	f.calls.Add(1)
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	out := make(chan Chunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}
