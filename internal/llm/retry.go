package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// MaxAttempts bounds the gateway's attempts per call.
const MaxAttempts = 3

// BackoffBase is the first retry delay. Tests set it to zero.
var BackoffBase = time.Second

const maxBackoff = 30 * time.Second

// Backoff returns base × 2^attempt (0-indexed) plus up to 50% jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << uint(attempt)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
