package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const warmupTimeout = 30 * time.Second

// ErrNotRunning means no Ollama server answered at the configured URL.
var ErrNotRunning = errors.New("ollama is not running (start it with: ollama serve)")

// EnsureReady probes the server and the chat model. With pull set a missing
// model is downloaded, with progress written to w; otherwise it is an
// error. A short warm-up chat loads the model before the first interview.
func EnsureReady(ctx context.Context, c *Client, model string, pull bool, w io.Writer) error {
	if !c.Ping(ctx) {
		return ErrNotRunning
	}

	ok, err := c.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if !ok {
		if !pull {
			return fmt.Errorf("model %s is not installed; run: ollama pull %s", model, model)
		}
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.PullModel(ctx, model, func(p PullProgress) {
			if pct := p.Percent(); pct >= 0 {
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
				return
			}
			fmt.Fprintf(w, "  %s\n", p.Status)
		})
		if err != nil {
			return err
		}
	}

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	if _, err := c.Chat(warmCtx, model, []Message{{Role: "user", Content: "你好"}}, &Options{NumPredict: 1}); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed: %v\n", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
