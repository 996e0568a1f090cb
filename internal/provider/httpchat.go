package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/proxy"
)

// HTTPChat is the generic backend for any OpenAI-compatible endpoint
// reached over plain HTTP. The proxy client retries rate limits itself.
type HTTPChat struct {
	client *proxy.Client
	model  string
}

// NewHTTPChat creates the backend. An empty baseURL targets OpenRouter.
func NewHTTPChat(apiKey, baseURL, model string) (*HTTPChat, error) {
	if apiKey == "" {
		return nil, errors.New("httpchat API key is required")
	}
	return &HTTPChat{client: proxy.NewClient(apiKey, baseURL), model: model}, nil
}

func (h *HTTPChat) Name() string { return "httpchat" }

// Probe checks that the endpoint answers and, when it publishes a model
// list, that the configured model is on it.
func (h *HTTPChat) Probe(ctx context.Context) error {
	models, err := h.client.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 || h.model == "" {
		return nil
	}
	if !slices.ContainsFunc(models, func(m proxy.Model) bool { return m.ID == h.model }) {
		return fmt.Errorf("model %s is not served by the endpoint", h.model)
	}
	return nil
}

func (h *HTTPChat) request(prompt string) proxy.ChatRequest {
	return proxy.ChatRequest{
		Model:    h.model,
		Messages: []proxy.Message{{Role: "user", Content: prompt}},
	}
}

func (h *HTTPChat) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := h.client.Complete(ctx, h.request(prompt))
	if err != nil {
		return "", mapProxyError(h.Name(), err)
	}
	return text, nil
}

func (h *HTTPChat) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	in, err := h.client.Stream(ctx, h.request(prompt))
	if err != nil {
		return nil, mapProxyError(h.Name(), err)
	}
	return relay(ctx, in, func(d proxy.Delta) Chunk {
		if d.Err != nil {
			return Chunk{Err: callErr(h.Name(), d.Err)}
		}
		return Chunk{Text: d.Content}
	}), nil
}

func mapProxyError(name string, err error) error {
	var rl *proxy.RateLimitError
	if errors.As(err, &rl) {
		return callErr(name, &RateLimitError{RetryAfter: rl.RetryAfter, Err: err})
	}
	return callErr(name, err)
}
