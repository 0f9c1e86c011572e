package service

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoff = time.Second

// backoff returns base*2^attempt plus up to half of that again as jitter, capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := base << attempt
	if exp <= 0 || exp > maxBackoff {
		exp = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(exp)/2 + 1))
	return exp + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
