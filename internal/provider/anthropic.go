package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the deep-reasoning backend.
type AnthropicConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	ThinkingBudget int
	MaxRetries     int
}

// Anthropic generates text with Claude, using extended thinking when a
// thinking budget is configured. Rate-limit retries are left to the SDK.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	thinking  int64
}

// NewAnthropic creates the backend. The thinking budget is dropped when it
// does not fit below MaxTokens.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	a := &Anthropic{
		client:    &client,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
	// The API requires at least 1024 tokens of budget, strictly below max_tokens.
	if cfg.ThinkingBudget >= 1024 && cfg.ThinkingBudget < cfg.MaxTokens {
		a.thinking = int64(cfg.ThinkingBudget)
	}
	return a, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) params(prompt string) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.thinking > 0 {
		p.Thinking = anthropic.ThinkingConfigParamOfEnabled(a.thinking)
	}
	return p
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, a.params(prompt))
	if err != nil {
		return "", mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", callErr(a.Name(), errors.New("no text content in response"))
	}
	return sb.String(), nil
}

func (a *Anthropic) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(prompt))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			ev := stream.Current()
			// Thinking deltas are internal reasoning and are not forwarded.
			if ev.Type != "content_block_delta" || ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			select {
			case out <- Chunk{Text: ev.Delta.Text}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- Chunk{Err: mapAnthropicError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return callErr("anthropic", &RateLimitError{Err: err})
	}
	return callErr("anthropic", err)
}
