package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Sink methods once the session has ended.
var ErrClosed = errors.New("stream session closed")

// TimeoutMessage is the error event pushed when a session times out.
const TimeoutMessage = "请求超时，请稍后重试"

// finalEventWait bounds how long the terminal error event waits for a
// consumer that neither reads nor goes away.
const finalEventWait = time.Minute

// Sink is the producer side of a session. Send is meant for a single
// producer goroutine; the terminal methods may be called from anywhere.
type Sink struct {
	session *Session
	events  chan Event
	// reader is done when the consumer goes away.
	reader context.Context
	// done is closed on the first terminal transition.
	done chan struct{}
	// sendMu serializes sends with the final close of events.
	sendMu sync.Mutex
	// finalWait is how long finish waits to deliver the error event.
	finalWait time.Duration

	onFinish func(State, string)
}

func newSink(reader context.Context, s *Session, onFinish func(State, string)) *Sink {
	return &Sink{
		session:   s,
		events:    make(chan Event),
		reader:    reader,
		done:      make(chan struct{}),
		finalWait: finalEventWait,
		onFinish:  onFinish,
	}
}

// Session returns the session the sink feeds.
func (k *Sink) Session() *Session { return k.session }

// Done is closed when the session ends.
func (k *Sink) Done() <-chan struct{} { return k.done }

// Send forwards one content chunk. It blocks until the consumer takes it
// and returns ErrClosed once the session has ended or the consumer left.
func (k *Sink) Send(text string) error {
	return k.push(Event{Content: text})
}

// References forwards source URLs reported by the backend.
func (k *Sink) References(urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	return k.push(Event{References: urls})
}

func (k *Sink) push(ev Event) error {
	k.sendMu.Lock()
	defer k.sendMu.Unlock()
	select {
	case <-k.done:
		return ErrClosed
	case <-k.reader.Done():
		k.finish(Errored, "client disconnected", "")
		return ErrClosed
	default:
	}
	select {
	case k.events <- ev:
		return nil
	case <-k.done:
		return ErrClosed
	case <-k.reader.Done():
		k.finish(Errored, "client disconnected", "")
		return ErrClosed
	}
}

// Complete ends the session successfully. It is a no-op if the session
// already ended.
func (k *Sink) Complete() bool {
	return k.finish(Completed, "", "")
}

// Error ends the session with an error event carrying err's message.
func (k *Sink) Error(err error) bool {
	msg := "stream failed"
	if err != nil {
		msg = err.Error()
	}
	return k.finish(Errored, msg, msg)
}

func (k *Sink) timeout() bool {
	return k.finish(TimedOut, "timeout", TimeoutMessage)
}

// finish performs the terminal transition, pushes the final error event if
// any, and closes the channel. Only the first caller gets through.
func (k *Sink) finish(to State, reason, errMsg string) bool {
	if !k.session.transition(to, reason) {
		return false
	}
	close(k.done)

	go func() {
		// Wait for an in-flight Send to observe done before closing.
		k.sendMu.Lock()
		defer k.sendMu.Unlock()
		if errMsg != "" {
			t := time.NewTimer(k.finalWait)
			defer t.Stop()
			select {
			case k.events <- Event{Error: errMsg}:
			case <-k.reader.Done():
			case <-t.C:
			}
		}
		close(k.events)
	}()

	if k.onFinish != nil {
		k.onFinish(to, reason)
	}
	return true
}
