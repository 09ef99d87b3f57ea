// Package ratelimit implements the token-bucket limiter the web search
// agent uses to stay within an external search provider's quota. It is
// carried over nearly verbatim from the reference system's
// Toolkit/pkg/toolkit/common/ratelimit.TokenBucket, since that
// implementation already matches spec.md §4.7's "configurable capacity
// and refill-rate" requirement exactly.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucketConfig configures a TokenBucket's capacity and refill rate.
type TokenBucketConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

// TokenBucket is a classic token-bucket rate limiter.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

// NewTokenBucket constructs a bucket starting full.
func NewTokenBucket(cfg TokenBucketConfig) *TokenBucket {
	return &TokenBucket{
		tokens:     cfg.Capacity,
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
