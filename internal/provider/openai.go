package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI reasoning backend.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	ReasoningEffort string
}

// OpenAI generates text with an OpenAI chat model. With a reasoning model
// and an effort level it serves as a deep-thinking backend as well.
type OpenAI struct {
	client *openai.Client
	model  string
	effort string
}

// NewOpenAI creates the backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.O3Mini
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		effort: cfg.ReasoningEffort,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) request(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ReasoningEffort: o.effort,
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.request(prompt))
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", callErr(o.Name(), errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	req := o.request(prompt)
	req.Stream = true
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			var c Chunk
			if err != nil {
				c = Chunk{Err: mapOpenAIError(err)}
			} else if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				c = Chunk{Text: resp.Choices[0].Delta.Content}
			} else {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
			if c.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return callErr("openai", &RateLimitError{Err: err})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return callErr("openai", &RateLimitError{Err: err})
	}
	return callErr("openai", err)
}
