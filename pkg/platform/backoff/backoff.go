// Package backoff computes jittered exponential delays for bounded retries.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// jitterFrac spreads retries of concurrent callers by ±20%.
const jitterFrac = 0.2

// Delay returns the wait before retry number attempt (1-based), doubling from
// initial and capped at max, with jitter.
func Delay(initial, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if base > max {
		base = max
	}
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(base)) -
		time.Duration(jitterFrac*float64(base))
	return base + jitter
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
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
