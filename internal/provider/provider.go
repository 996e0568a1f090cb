// Package provider abstracts the text-generation backends behind one
// interface and picks among them by capability.
package provider

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider turns a prompt into text, either in one piece or as a stream of
// chunks. Implementations are safe for concurrent use.
type Provider interface {
	Name() string

	// Generate blocks until the full response is available.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream returns a channel that yields chunks in order and is
	// closed after the last one. A chunk with Err set is terminal.
	GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error)
}

// Chunk is one piece of a streamed response. References carries source
// URLs reported by network-augmented backends.
type Chunk struct {
	Text       string
	References []string
	Err        error
}

// Capability is a set of backend features.
type Capability uint8

const (
	DeepThinking Capability = 1 << iota
	Network
	GenericText
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{DeepThinking, "deepThinking"},
	{Network, "network"},
	{GenericText, "genericText"},
}

// Has reports whether c contains every capability in other.
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

// Names lists the capabilities in c.
func (c Capability) Names() []string {
	var out []string
	for _, cn := range capabilityNames {
		if c&cn.c != 0 {
			out = append(out, cn.name)
		}
	}
	return out
}

func (c Capability) String() string {
	return strings.Join(c.Names(), "|")
}

func (c Capability) MarshalJSON() ([]byte, error) {
	names := c.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON ignores unknown names.
func (c *Capability) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	*c = 0
	for _, n := range names {
		for _, cn := range capabilityNames {
			if cn.name == n {
				*c |= cn.c
			}
		}
	}
	return nil
}

// Descriptor describes one configured backend. Available is decided once
// at startup.
type Descriptor struct {
	Name         string     `json:"name"`
	Priority     int        `json:"priority"`
	Capabilities Capability `json:"capabilities"`
	Available    bool       `json:"available"`
	Reason       string     `json:"reason,omitempty"`
}

type contextKey string

const purposeKey contextKey = "provider_purpose"

// WithPurpose labels ctx with what the call is for; the label shows up in logs.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose label of ctx, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// relay converts a backend stream into chunks. It stops forwarding when ctx
// is done and drains in so the producer can exit.
func relay[T any](ctx context.Context, in <-chan T, conv func(T) Chunk) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case out <- conv(v):
			case <-ctx.Done():
				for range in {
				}
				return
			}
		}
	}()
	return out
}
