package provider

import (
	"context"
	"log/slog"
	"time"
)

// LoggingProvider records the duration and outcome of every call.
type LoggingProvider struct {
	inner  Provider
	logger *slog.Logger
}

// WithLogging wraps p. A nil logger uses slog.Default.
func WithLogging(p Provider, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Name() string { return l.inner.Name() }

func (l *LoggingProvider) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := l.inner.Generate(ctx, prompt)
	attrs := []any{
		"provider", l.inner.Name(),
		"purpose", PurposeFrom(ctx),
		"prompt_len", len(prompt),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		l.logger.Warn("provider call failed", append(attrs, "error", err)...)
		return "", err
	}
	l.logger.Debug("provider call", append(attrs, "response_len", len(text))...)
	return text, nil
}

func (l *LoggingProvider) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	start := time.Now()
	in, err := l.inner.GenerateStream(ctx, prompt)
	if err != nil {
		l.logger.Warn("provider stream failed to open",
			"provider", l.inner.Name(),
			"purpose", PurposeFrom(ctx),
			"error", err,
		)
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		var chunks, size int
		var streamErr error
		for c := range in {
			chunks++
			size += len(c.Text)
			if c.Err != nil {
				streamErr = c.Err
			}
			select {
			case out <- c:
			case <-ctx.Done():
				for range in {
				}
				return
			}
		}
		attrs := []any{
			"provider", l.inner.Name(),
			"purpose", PurposeFrom(ctx),
			"chunks", chunks,
			"response_len", size,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if streamErr != nil {
			l.logger.Warn("provider stream ended with error", append(attrs, "error", streamErr)...)
			return
		}
		l.logger.Debug("provider stream", attrs...)
	}()
	return out, nil
}
