package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// ErrBusy is returned by Dispatch when the worker pool is saturated.
var ErrBusy = errors.New("stream dispatcher busy")

const recordTimeout = 2 * time.Second

// Producer writes a session's content through sink. Returning nil
// completes the session; an error ends it with an error event.
type Producer func(ctx context.Context, sink *Sink) error

// Dispatcher runs producers on a bounded pool and tracks live sessions.
type Dispatcher struct {
	pool     *ants.Pool
	recorder Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewDispatcher creates a dispatcher with poolSize workers. A nil recorder
// logs transitions through logger.
func NewDispatcher(poolSize int, rec Recorder, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = NewLogRecorder(logger)
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("creating stream pool: %w", err)
	}
	return &Dispatcher{
		pool:     pool,
		recorder: rec,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Open creates an Active session bound to reader, the consumer's context.
// The session times out after timeout and errors when reader is done.
// The returned channel yields events in order and is closed exactly once.
// Callers should drain it or let reader end; a final error event nobody
// reads is dropped after a minute.
func (d *Dispatcher) Open(reader context.Context, mode string, timeout time.Duration) (*Session, *Sink, <-chan Event) {
	s := newSession(uuid.NewString(), mode, timeout)

	var mu sync.Mutex
	var stops []func() bool
	sink := newSink(reader, s, func(State, string) {
		mu.Lock()
		for _, stop := range stops {
			stop()
		}
		mu.Unlock()
		d.untrack(s.ID)
		d.record(s, false)
	})

	d.track(s)
	d.record(s, true)

	timer := time.AfterFunc(timeout, func() { sink.timeout() })
	stopReader := context.AfterFunc(reader, func() {
		sink.finish(Errored, "client disconnected", "")
	})
	mu.Lock()
	stops = append(stops, timer.Stop, stopReader)
	mu.Unlock()
	return s, sink, sink.events
}

// Dispatch opens a session and runs produce on the pool, off the caller's
// path. produce's context ends when the session does. A panic in produce
// ends the session as Errored.
func (d *Dispatcher) Dispatch(reader context.Context, mode string, timeout time.Duration, produce Producer) (*Session, <-chan Event, error) {
	s, sink, events := d.Open(reader, mode, timeout)

	ctx, cancel := context.WithCancel(reader)
	err := d.pool.Submit(func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("stream producer panicked", "session", s.ID, "panic", r)
				sink.Error(errors.New("internal error"))
			}
		}()

		go func() {
			select {
			case <-sink.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := produce(ctx, sink); err != nil {
			sink.Error(err)
			return
		}
		sink.Complete()
	})
	if err != nil {
		cancel()
		sink.finish(Errored, "dispatcher busy", "")
		if errors.Is(err, ants.ErrPoolOverload) {
			return nil, nil, ErrBusy
		}
		return nil, nil, fmt.Errorf("submitting stream task: %w", err)
	}
	return s, events, nil
}

// Lookup returns a live session by ID.
func (d *Dispatcher) Lookup(id string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	return s, ok
}

// Active returns the number of live sessions.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Running returns the number of busy pool workers.
func (d *Dispatcher) Running() int { return d.pool.Running() }

// Recorder returns the configured recorder.
func (d *Dispatcher) Recorder() Recorder { return d.recorder }

// Close stops accepting work and waits up to timeout for running producers.
func (d *Dispatcher) Close(timeout time.Duration) error {
	return d.pool.ReleaseTimeout(timeout)
}

func (d *Dispatcher) track(s *Session) {
	d.mu.Lock()
	d.sessions[s.ID] = s
	d.mu.Unlock()
}

func (d *Dispatcher) untrack(id string) {
	d.mu.Lock()
	delete(d.sessions, id)
	d.mu.Unlock()
}

func (d *Dispatcher) record(s *Session, opened bool) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if opened {
		d.recorder.Opened(ctx, s.Info())
		return
	}
	d.recorder.Finished(ctx, s.Info())
}
