package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/provider"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/stream"
)

// Mode selects the backend class of a chat stream.
type Mode string

const (
	ModeDeep    Mode = "deep"
	ModeNetwork Mode = "network"
	ModeHTTP    Mode = "http"
	ModeSimple  Mode = "simple"
)

// Modes lists the chat modes in endpoint order.
var Modes = []Mode{ModeDeep, ModeNetwork, ModeHTTP, ModeSimple}

// ChatFailureMessage is the error event sent when a provider stream breaks.
const ChatFailureMessage = "抱歉，AI服务暂时不可用，请稍后重试。"

var errChatFailed = errors.New(ChatFailureMessage)

func (m Mode) capability() (provider.Capability, bool) {
	switch m {
	case ModeDeep:
		return provider.DeepThinking, true
	case ModeNetwork:
		return provider.Network, true
	case ModeHTTP:
		return provider.GenericText, true
	default:
		return 0, false
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Chat starts a streaming session for message. ctx is the consumer's
// context: when it ends the session ends too. A mode without a provider
// replays the canned fallback reply.
func (o *Orchestrator) Chat(ctx context.Context, mode Mode, message string) (*stream.Session, <-chan stream.Event, error) {
	if o.dispatcher == nil {
		return nil, nil, errors.New("chat streaming is not configured")
	}
	if mode == ModeSimple {
		reply := o.mock.SimpleReply(message)
		return o.dispatcher.Dispatch(ctx, string(mode), o.shortTimeout, func(ctx context.Context, sink *stream.Sink) error {
			return stream.Pace(ctx, sink, reply, o.paceDelay)
		})
	}

	c, ok := mode.capability()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	prov, ok := o.selector.Select(c)
	if !ok {
		reply := o.mock.FallbackReply(message, mode == ModeDeep)
		return o.dispatcher.Dispatch(ctx, string(mode), o.shortTimeout, func(ctx context.Context, sink *stream.Sink) error {
			return stream.Pace(ctx, sink, reply, o.paceDelay)
		})
	}
	return o.dispatcher.Dispatch(ctx, string(mode), o.longTimeout, func(ctx context.Context, sink *stream.Sink) error {
		return o.relay(ctx, prov, sink, message)
	})
}

func (o *Orchestrator) relay(ctx context.Context, prov provider.Provider, sink *stream.Sink, message string) error {
	chunks, err := prov.GenerateStream(provider.WithPurpose(ctx, "chat"), message)
	if err != nil {
		o.logger.Warn("chat stream failed to open", "provider", prov.Name(), "error", err)
		return errChatFailed
	}
	for c := range chunks {
		if c.Err != nil {
			o.logger.Warn("chat stream broke", "provider", prov.Name(), "error", c.Err)
			return errChatFailed
		}
		if err := sink.References(c.References); err != nil {
			return err
		}
		if c.Text == "" {
			continue
		}
		if err := sink.Send(c.Text); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) paceDelay() time.Duration {
	return o.mock.Duration(o.paceMin, o.paceMax)
}
