// Package stream owns the lifecycle of server-push sessions: one producer
// task per session feeding an ordered event channel that is closed exactly
// once.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Session.
type State int32

const (
	Active State = iota
	Completed
	TimedOut
	Errored
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool { return s != Active }

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Session is one streaming exchange. It leaves Active exactly once; later
// terminal signals are ignored.
type Session struct {
	ID        string
	Mode      string
	StartedAt time.Time
	Timeout   time.Duration

	state atomic.Int32

	mu      sync.Mutex
	endedAt time.Time
	reason  string
}

func newSession(id, mode string, timeout time.Duration) *Session {
	return &Session{ID: id, Mode: mode, StartedAt: time.Now(), Timeout: timeout}
}

func (s *Session) State() State { return State(s.state.Load()) }

// transition moves an Active session to the terminal state to. It returns
// false if the session had already ended.
func (s *Session) transition(to State, reason string) bool {
	if !s.state.CompareAndSwap(int32(Active), int32(to)) {
		return false
	}
	s.mu.Lock()
	s.endedAt = time.Now()
	s.reason = reason
	s.mu.Unlock()
	return true
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string     `json:"id"`
	Mode      string     `json:"mode"`
	State     State      `json:"state"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Timeout   string     `json:"timeout"`
	Reason    string     `json:"reason,omitempty"`
}

func (s *Session) Info() Info {
	info := Info{
		ID:        s.ID,
		Mode:      s.Mode,
		State:     s.State(),
		StartedAt: s.StartedAt,
		Timeout:   s.Timeout.String(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endedAt.IsZero() {
		end := s.endedAt
		info.EndedAt = &end
	}
	info.Reason = s.reason
	return info
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for _, st := range []State{Active, Completed, TimedOut, Errored} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	*s = Active
	return nil
}
