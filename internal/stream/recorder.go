package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned by Lookup for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Recorder is told about every session start and terminal transition.
// Implementations must not block for long; they run on the session path.
type Recorder interface {
	Opened(ctx context.Context, info Info)
	Finished(ctx context.Context, info Info)
}

// SessionStore is a Recorder that can also answer for sessions that are no
// longer in the live registry.
type SessionStore interface {
	Recorder
	Lookup(ctx context.Context, id string) (Info, error)
}

// LogRecorder writes session transitions to a slog logger.
type LogRecorder struct {
	logger *slog.Logger
}

func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Opened(_ context.Context, info Info) {
	r.logger.Debug("stream session opened", "session", info.ID, "mode", info.Mode, "timeout", info.Timeout)
}

func (r *LogRecorder) Finished(_ context.Context, info Info) {
	attrs := []any{"session", info.ID, "mode", info.Mode, "state", info.State.String()}
	if info.EndedAt != nil {
		attrs = append(attrs, "duration_ms", info.EndedAt.Sub(info.StartedAt).Milliseconds())
	}
	if info.State == Completed {
		r.logger.Info("stream session completed", attrs...)
		return
	}
	r.logger.Warn("stream session ended", append(attrs, "reason", info.Reason)...)
}

// RedisRecorder keeps session snapshots under session:<id> with a TTL so
// their final state can be queried after they leave the registry.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisRecorder(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRecorder{client: client, ttl: ttl, logger: logger}
}

func (r *RedisRecorder) key(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisRecorder) Opened(ctx context.Context, info Info) { r.store(ctx, info) }

func (r *RedisRecorder) Finished(ctx context.Context, info Info) { r.store(ctx, info) }

func (r *RedisRecorder) store(ctx context.Context, info Info) {
	data, err := json.Marshal(info)
	if err != nil {
		r.logger.Warn("encoding session snapshot", "session", info.ID, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key(info.ID), data, r.ttl).Err(); err != nil {
		r.logger.Warn("storing session snapshot", "session", info.ID, "error", err)
	}
}

func (r *RedisRecorder) Lookup(ctx context.Context, id string) (Info, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return Info{}, ErrSessionNotFound
	}
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return Info{}, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return info, nil
}

// multiRecorder fans out to several recorders.
type multiRecorder []Recorder

// Tee returns a recorder that forwards to each non-nil recorder in order.
func Tee(recs ...Recorder) SessionStore {
	var out multiRecorder
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) Opened(ctx context.Context, info Info) {
	for _, r := range m {
		r.Opened(ctx, info)
	}
}

func (m multiRecorder) Finished(ctx context.Context, info Info) {
	for _, r := range m {
		r.Finished(ctx, info)
	}
}

// Lookup asks each recorder that keeps history, in order.
func (m multiRecorder) Lookup(ctx context.Context, id string) (Info, error) {
	for _, r := range m {
		store, ok := r.(SessionStore)
		if !ok {
			continue
		}
		info, err := store.Lookup(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		return info, err
	}
	return Info{}, ErrSessionNotFound
}
