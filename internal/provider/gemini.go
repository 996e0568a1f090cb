package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiConfig configures the network-augmented backend.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Gemini generates text grounded with Google Search results. Source URLs
// from the grounding metadata are reported as chunk references.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config())
	if err != nil {
		return "", mapGeminiError(err)
	}
	text := result.Text()
	if text == "" {
		return "", callErr(g.Name(), errors.New("no text content in response"))
	}
	return text, nil
}

func (g *Gemini) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	out := make(chan Chunk)
	go func() {
		defer close(out)

		seen := map[string]bool{}
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config()) {
			var c Chunk
			if err != nil {
				c.Err = mapGeminiError(err)
			} else {
				c.Text = resp.Text()
				c.References = newReferences(resp, seen)
			}
			if c.Err == nil && c.Text == "" && len(c.References) == 0 {
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

// newReferences returns grounding URLs in resp not already in seen.
func newReferences(resp *genai.GenerateContentResponse, seen map[string]bool) []string {
	var refs []string
	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, gc := range cand.GroundingMetadata.GroundingChunks {
			if gc == nil || gc.Web == nil || gc.Web.URI == "" || seen[gc.Web.URI] {
				continue
			}
			seen[gc.Web.URI] = true
			refs = append(refs, gc.Web.URI)
		}
	}
	return refs
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return callErr("gemini", &RateLimitError{Err: err})
	}
	return callErr("gemini", err)
}
