package provider

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/config"
	"github.com/AkaneMaktyo/ai-interview-backend/internal/ollama"
)

const (
	priorityAnthropic = 10
	priorityOpenAI    = 20
	priorityGemini    = 30
	priorityHTTPChat  = 40
	priorityOllama    = 50

	retryBase    = 500 * time.Millisecond
	probeTimeout = 30 * time.Second
)

// Build constructs every configured backend and decides availability once.
// Cloud backends are available when enabled and keyed; httpchat and Ollama
// also have to pass a startup probe. Probe output goes to progress. A backend that fails
// to initialize is recorded as unavailable; Build itself never fails.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, progress io.Writer) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = io.Discard
	}
	limit := cfg.Providers.MaxConcurrent
	retries := cfg.Providers.MaxRetries

	wrap := func(p Provider, retry bool) Provider {
		p = WithLimit(p, limit)
		if retry {
			p = WithRetry(p, retries, retryBase)
		}
		return WithLogging(p, logger)
	}

	builders := []func(context.Context) Entry{
		func(context.Context) Entry {
			d := Descriptor{Name: "anthropic", Priority: priorityAnthropic, Capabilities: DeepThinking}
			if !cfg.Anthropic.Enabled {
				return unavailable(d, "disabled")
			}
			p, err := NewAnthropic(AnthropicConfig{
				APIKey:         cfg.Anthropic.APIKey,
				Model:          cfg.Anthropic.Model,
				MaxTokens:      cfg.Anthropic.MaxTokens,
				ThinkingBudget: cfg.Anthropic.ThinkingBudget,
				MaxRetries:     retries,
			})
			if err != nil {
				return unavailable(d, err.Error())
			}
			return available(d, wrap(p, false))
		},
		func(context.Context) Entry {
			d := Descriptor{Name: "openai", Priority: priorityOpenAI, Capabilities: DeepThinking | GenericText}
			if !cfg.OpenAI.Enabled {
				return unavailable(d, "disabled")
			}
			p, err := NewOpenAI(OpenAIConfig{
				APIKey:          cfg.OpenAI.APIKey,
				BaseURL:         cfg.OpenAI.BaseURL,
				Model:           cfg.OpenAI.Model,
				ReasoningEffort: cfg.OpenAI.ReasoningEffort,
			})
			if err != nil {
				return unavailable(d, err.Error())
			}
			return available(d, wrap(p, true))
		},
		func(ctx context.Context) Entry {
			d := Descriptor{Name: "gemini", Priority: priorityGemini, Capabilities: Network}
			if !cfg.Gemini.Enabled {
				return unavailable(d, "disabled")
			}
			p, err := NewGemini(ctx, GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
			if err != nil {
				return unavailable(d, err.Error())
			}
			return available(d, wrap(p, true))
		},
		func(ctx context.Context) Entry {
			d := Descriptor{Name: "httpchat", Priority: priorityHTTPChat, Capabilities: GenericText}
			if !cfg.HTTPChat.Enabled {
				return unavailable(d, "disabled")
			}
			p, err := NewHTTPChat(cfg.HTTPChat.APIKey, cfg.HTTPChat.BaseURL, cfg.HTTPChat.Model)
			if err != nil {
				return unavailable(d, err.Error())
			}
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if err := p.Probe(probeCtx); err != nil {
				return unavailable(d, err.Error())
			}
			return available(d, wrap(p, false))
		},
		func(ctx context.Context) Entry {
			d := Descriptor{Name: "ollama", Priority: priorityOllama, Capabilities: GenericText}
			if !cfg.Ollama.Enabled {
				return unavailable(d, "disabled")
			}
			client := ollama.New(cfg.Ollama.BaseURL)
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if err := ollama.EnsureReady(probeCtx, client, cfg.Ollama.Model, cfg.Ollama.AutoPull, progress); err != nil {
				return unavailable(d, err.Error())
			}
			return available(d, wrap(NewOllama(client, cfg.Ollama.Model), false))
		},
	}

	entries := make([]Entry, len(builders))
	var g errgroup.Group
	for i, build := range builders {
		g.Go(func() error {
			entries[i] = build(ctx)
			return nil
		})
	}
	g.Wait()

	for _, e := range entries {
		d := e.Descriptor
		if d.Available {
			logger.Info("provider available", "provider", d.Name, "capabilities", d.Capabilities.String())
		} else {
			logger.Info("provider unavailable", "provider", d.Name, "reason", d.Reason)
		}
	}
	return NewSelector(entries...)
}

func available(d Descriptor, p Provider) Entry {
	d.Available = true
	return Entry{Descriptor: d, Provider: p}
}

func unavailable(d Descriptor, reason string) Entry {
	d.Available = false
	d.Reason = reason
	return Entry{Descriptor: d}
}
