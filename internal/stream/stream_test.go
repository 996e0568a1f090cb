package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu       sync.Mutex
	opened   []Info
	finished []Info
}

func (r *fakeRecorder) Opened(_ context.Context, info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, info)
}

func (r *fakeRecorder) Finished(_ context.Context, info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, info)
}

func (r *fakeRecorder) snapshot() ([]Info, []Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Info(nil), r.opened...), append([]Info(nil), r.finished...)
}

func newTestDispatcher(t *testing.T, size int) (*Dispatcher, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	d, err := NewDispatcher(size, rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(time.Second) })
	return d, rec
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("event channel not closed; got %v so far", out)
		}
	}
}

func TestDispatchCompletes(t *testing.T) {
	d, rec := newTestDispatcher(t, 4)
	s, events, err := d.Dispatch(context.Background(), "deep", time.Second, func(_ context.Context, sink *Sink) error {
		for _, c := range []string{"a", "b", "c"} {
			if err := sink.Send(c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, []Event{{Content: "a"}, {Content: "b"}, {Content: "c"}}, got)
	assert.Equal(t, Completed, s.State())
	require.Eventually(t, func() bool { return d.Active() == 0 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, finished := rec.snapshot()
		return len(finished) == 1
	}, time.Second, 5*time.Millisecond)
	opened, finished := rec.snapshot()
	require.Len(t, opened, 1)
	assert.Equal(t, Active, opened[0].State)
	assert.Equal(t, Completed, finished[0].State)
	assert.NotNil(t, finished[0].EndedAt)
}

func TestDispatchProducerError(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	s, events, err := d.Dispatch(context.Background(), "http", time.Second, func(_ context.Context, sink *Sink) error {
		_ = sink.Send("partial")
		return errors.New("boom")
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, []Event{{Content: "partial"}, {Error: "boom"}}, got)
	assert.Equal(t, Errored, s.State())
	assert.Equal(t, "boom", s.Info().Reason)
}

func TestDispatchTimeout(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	canceled := make(chan struct{})
	s, events, err := d.Dispatch(context.Background(), "deep", 30*time.Millisecond, func(ctx context.Context, sink *Sink) error {
		<-ctx.Done()
		close(canceled)
		return sink.Send("too late")
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, []Event{{Error: TimeoutMessage}}, got)
	assert.Equal(t, TimedOut, s.State())

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("producer context not canceled on timeout")
	}
}

func TestDispatchPanicEndsSession(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	s, events, err := d.Dispatch(context.Background(), "deep", time.Second, func(context.Context, *Sink) error {
		panic("kaboom")
	})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsError())
	assert.Equal(t, Errored, s.State())
}

func TestDispatchBusy(t *testing.T) {
	d, _ := newTestDispatcher(t, 1)
	release := make(chan struct{})
	_, events, err := d.Dispatch(context.Background(), "deep", time.Second, func(context.Context, *Sink) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.Running() == 1 }, time.Second, 5*time.Millisecond)

	_, _, err = d.Dispatch(context.Background(), "deep", time.Second, func(context.Context, *Sink) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1, d.Active())

	close(release)
	collect(t, events)
}

func TestDispatchClientDisconnect(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	reader, cancel := context.WithCancel(context.Background())
	sent := make(chan struct{})
	s, events, err := d.Dispatch(reader, "deep", time.Second, func(ctx context.Context, sink *Sink) error {
		if err := sink.Send("first"); err != nil {
			return err
		}
		close(sent)
		<-ctx.Done()
		return sink.Send("second")
	})
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, "first", ev.Content)
	<-sent
	cancel()

	got := collect(t, events)
	assert.Empty(t, got)
	assert.Equal(t, Errored, s.State())
	assert.Equal(t, "client disconnected", s.Info().Reason)
}

func TestLookupTracksLiveSessions(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	release := make(chan struct{})
	s, events, err := d.Dispatch(context.Background(), "network", time.Second, func(context.Context, *Sink) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	got, ok := d.Lookup(s.ID)
	require.True(t, ok)
	assert.Equal(t, "network", got.Mode)

	close(release)
	collect(t, events)
	require.Eventually(t, func() bool {
		_, ok := d.Lookup(s.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestFirstTerminalWins(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	s, sink, events := d.Open(context.Background(), "deep", time.Second)

	assert.True(t, sink.Complete())
	assert.False(t, sink.Error(errors.New("late")))
	assert.False(t, sink.timeout())
	assert.ErrorIs(t, sink.Send("after"), ErrClosed)

	assert.Empty(t, collect(t, events))
	assert.Equal(t, Completed, s.State())
}

func TestCompleteUnblocksPendingSend(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	_, sink, events := d.Open(context.Background(), "deep", time.Second)

	errc := make(chan error, 1)
	go func() { errc <- sink.Send("nobody reads this yet") }()
	time.Sleep(20 * time.Millisecond)
	sink.Complete()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Send still blocked after Complete")
	}
	assert.Empty(t, collect(t, events))
}

func TestUnreadErrorEventIsDropped(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	s, sink, events := d.Open(context.Background(), "deep", time.Second)
	sink.finalWait = 10 * time.Millisecond

	assert.True(t, sink.Error(errors.New("backend down")))
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, collect(t, events))
	assert.Equal(t, Errored, s.State())
}

func TestReferencesEvent(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	_, events, err := d.Dispatch(context.Background(), "network", time.Second, func(_ context.Context, sink *Sink) error {
		assert.NoError(t, sink.References(nil))
		return sink.References([]string{"https://a.example"})
	})
	require.NoError(t, err)
	assert.Equal(t, []Event{{References: []string{"https://a.example"}}}, collect(t, events))
}

func TestPace(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	var delays int
	_, events, err := d.Dispatch(context.Background(), "simple", time.Second, func(ctx context.Context, sink *Sink) error {
		return Pace(ctx, sink, "one\n\n  \n two\nthree", func() time.Duration {
			delays++
			return time.Millisecond
		})
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, []Event{{Content: "one\n"}, {Content: " two\n"}, {Content: "three\n"}}, got)
	assert.Equal(t, 2, delays)
}

func TestPaceStopsOnTimeout(t *testing.T) {
	d, _ := newTestDispatcher(t, 4)
	s, events, err := d.Dispatch(context.Background(), "simple", 40*time.Millisecond, func(ctx context.Context, sink *Sink) error {
		return Pace(ctx, sink, "a\nb\nc", func() time.Duration { return time.Hour })
	})
	require.NoError(t, err)

	got := collect(t, events)
	assert.Equal(t, []Event{{Content: "a\n"}, {Error: TimeoutMessage}}, got)
	assert.Equal(t, TimedOut, s.State())
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Content: "hi"}, `{"content":"hi"}`},
		{Event{Content: ""}, `{"content":""}`},
		{Event{Error: "bad"}, `{"error":"bad"}`},
		{Event{References: []string{"u"}}, `{"references":["u"]}`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.ev)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(b))
	}
}

func TestInfoJSONRoundTrip(t *testing.T) {
	s := newSession("abc", "deep", time.Minute)
	require.True(t, s.transition(TimedOut, "timeout"))

	b, err := json.Marshal(s.Info())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"timed_out"`)

	var back Info
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, TimedOut, back.State)
	assert.Equal(t, "1m0s", back.Timeout)
	assert.Equal(t, "timeout", back.Reason)
	require.NotNil(t, back.EndedAt)
}

func TestTee(t *testing.T) {
	a, b := &fakeRecorder{}, &fakeRecorder{}
	rec := Tee(a, nil, b)
	rec.Opened(context.Background(), Info{ID: "x"})
	rec.Finished(context.Background(), Info{ID: "x", State: Completed})

	for _, r := range []*fakeRecorder{a, b} {
		opened, finished := r.snapshot()
		assert.Len(t, opened, 1)
		assert.Len(t, finished, 1)
	}
}

type mapStore struct {
	fakeRecorder
	infos map[string]Info
}

func (m *mapStore) Lookup(_ context.Context, id string) (Info, error) {
	info, ok := m.infos[id]
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return info, nil
}

func TestTeeLookup(t *testing.T) {
	store := &mapStore{infos: map[string]Info{"x": {ID: "x", State: Completed}}}
	rec := Tee(&fakeRecorder{}, store)

	info, err := rec.Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, Completed, info.State)

	_, err = rec.Lookup(context.Background(), "y")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = Tee(&fakeRecorder{}).Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
