package orchestrator

import (
	"context"
	"errors"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/provider"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

// StatusReport describes which backend serves each feature right now.
type StatusReport struct {
	Providers      []provider.Descriptor `json:"providers"`
	Modes          map[string]string     `json:"modes"`
	ActiveSessions int                   `json:"activeSessions"`
	BusyWorkers    int                   `json:"busyWorkers"`
}

const mockName = "mock"

func (o *Orchestrator) Status() StatusReport {
	r := StatusReport{
		Providers: o.selector.Descriptors(),
		Modes:     make(map[string]string, len(Modes)+2),
	}
	if r.Providers == nil {
		r.Providers = []provider.Descriptor{}
	}
	r.Modes["question"] = o.served(provider.Network, provider.GenericText)
	r.Modes["evaluation"] = o.served(provider.DeepThinking, provider.GenericText)
	for _, m := range Modes {
		c, ok := m.capability()
		if !ok {
			r.Modes[string(m)] = mockName
			continue
		}
		r.Modes[string(m)] = o.served(c)
	}
	if o.dispatcher != nil {
		r.ActiveSessions = o.dispatcher.Active()
		r.BusyWorkers = o.dispatcher.Running()
	}
	return r
}

func (o *Orchestrator) served(caps ...provider.Capability) string {
	if p, _, ok := o.selector.SelectFirst(caps...); ok {
		return p.Name()
	}
	return mockName
}

// Session reports a session by ID: live sessions from the dispatcher,
// finished ones from the recorder when it keeps history.
func (o *Orchestrator) Session(ctx context.Context, id string) (stream.Info, error) {
	if o.dispatcher == nil {
		return stream.Info{}, stream.ErrSessionNotFound
	}
	if s, ok := o.dispatcher.Lookup(id); ok {
		return s.Info(), nil
	}
	store, ok := o.dispatcher.Recorder().(stream.SessionStore)
	if !ok {
		return stream.Info{}, stream.ErrSessionNotFound
	}
	info, err := store.Lookup(ctx, id)
	if err != nil && !errors.Is(err, stream.ErrSessionNotFound) {
		o.logger.Warn("session lookup failed", "session", id, "error", err)
	}
	return info, err
}
