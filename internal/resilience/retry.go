package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig tunes the exponential-backoff-with-jitter loop the reference
// system's Toolkit/Commons/http.Client uses for its retrying transport.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// backoff computes the delay before retry attempt n (1-indexed), following
// the reference client's base*2^(n-1) schedule plus +/-20% jitter, capped
// at MaxDelay.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	d *= jitter
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// sleep waits out a retry delay, honoring ctx cancellation. A
// server-provided Retry-After override (used for 429 responses) is
// substituted for the delay by Execute before sleep is called.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
