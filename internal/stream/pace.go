package stream

import (
	"context"
	"strings"
	"time"
)

// Pace replays a complete text through sink one line at a time, waiting
// delay() between lines so canned replies read like a live stream. Blank
// lines are skipped and each sent line keeps its trailing newline.
func Pace(ctx context.Context, sink *Sink, text string, delay func() time.Duration) error {
	first := true
	for line := range strings.SplitSeq(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !first && delay != nil {
			if err := wait(ctx, sink, delay()); err != nil {
				return err
			}
		}
		first = false
		if err := sink.Send(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func wait(ctx context.Context, sink *Sink, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-sink.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
