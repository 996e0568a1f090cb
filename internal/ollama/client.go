// Package ollama talks to a local Ollama server: model discovery, pulls,
// and blocking or NDJSON-streamed chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	pingTimeout  = 2 * time.Second
	listTimeout  = 10 * time.Second
	maxErrorBody = 4 << 10
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling options forwarded to the model.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// Model is one locally installed model.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// StatusError is a non-200 reply. Message is Ollama's "error" field when
// the body carries one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ollama returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ollama returned %d", e.Status)
}

// Client is safe for concurrent use. It sets no overall timeout because
// streamed chats last as long as the model keeps generating.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Ping reports whether the server answers the model listing.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Models lists the locally installed models.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	var tags struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	return tags.Models, nil
}

// HasModel reports whether name is installed. A bare name matches any tag,
// so "qwen2.5" finds "qwen2.5:7b".
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true, nil
		}
	}
	return false, nil
}

// PullProgress is one line of a streamed pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Percent is the completed share in [0,100], or -1 when the step has no size.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// PullModel downloads name and blocks until the pull finishes. onProgress
// may be nil.
func (c *Client) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/pull", map[string]any{"name": name, "stream": true})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", name, err)
	}
	defer resp.Body.Close()

	return eachLine(resp.Body, func(p PullProgress) error {
		if p.Error != "" {
			return fmt.Errorf("pulling %s: %s", name, p.Error)
		}
		if onProgress != nil {
			onProgress(p)
		}
		return nil
	})
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// chatResponse is the whole reply, or one line of a streamed one.
type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Chat returns the assistant's full reply.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", chatRequest{Model: model, Messages: messages, Options: opts})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding chat reply: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("chat: %s", out.Error)
	}
	return out.Message.Content, nil
}

// StreamPart is one streamed piece of content, or the terminal error.
type StreamPart struct {
	Content string
	Err     error
}

var errStreamDone = errors.New("stream done")

// ChatStream streams the reply. The channel closes after the done line, a
// terminal error part, or when ctx ends.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, opts *Options) (<-chan StreamPart, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", chatRequest{Model: model, Messages: messages, Stream: true, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("chat stream: %w", err)
	}

	out := make(chan StreamPart)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		emit := func(p StreamPart) error {
			select {
			case out <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := eachLine(resp.Body, func(line chatResponse) error {
			if line.Error != "" {
				return fmt.Errorf("chat stream: %s", line.Error)
			}
			if line.Message.Content != "" {
				if err := emit(StreamPart{Content: line.Message.Content}); err != nil {
					return err
				}
			}
			if line.Done {
				return errStreamDone
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamDone) && ctx.Err() == nil {
			emit(StreamPart{Err: err})
		}
	}()
	return out, nil
}

// eachLine decodes consecutive JSON values from r until EOF or fn fails.
func eachLine[T any](r io.Reader, fn func(T) error) error {
	dec := json.NewDecoder(r)
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// do sends a JSON request. Any status other than 200 becomes a *StatusError
// and the body is closed.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		se := &StatusError{Status: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&env) == nil {
			se.Message = env.Error
		}
		return nil, se
	}
	return resp, nil
}
