package provider

import (
	"context"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/ollama"
)

// Ollama is the generic backend served by a local Ollama instance.
type Ollama struct {
	client *ollama.Client
	model  string
}

func NewOllama(client *ollama.Client, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) messages(prompt string) []ollama.Message {
	return []ollama.Message{{Role: "user", Content: prompt}}
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := o.client.Chat(ctx, o.model, o.messages(prompt), nil)
	if err != nil {
		return "", callErr(o.Name(), err)
	}
	return text, nil
}

func (o *Ollama) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	in, err := o.client.ChatStream(ctx, o.model, o.messages(prompt), nil)
	if err != nil {
		return nil, callErr(o.Name(), err)
	}
	return relay(ctx, in, func(p ollama.StreamPart) Chunk {
		if p.Err != nil {
			return Chunk{Err: callErr(o.Name(), p.Err)}
		}
		return Chunk{Text: p.Content}
	}), nil
}
