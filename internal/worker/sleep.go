package worker

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx ends, returning ctx.Err() in the latter
// case. A non-positive d only reports the context state.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
