package utils

import (
	"context"
	"math/rand/v2"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Jitter returns a random duration in [lo, hi]. Swapped bounds are tolerated.
func Jitter(lo, hi time.Duration) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo || hi <= 0 {
		return max(lo, 0)
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
