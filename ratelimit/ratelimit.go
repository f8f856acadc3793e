// Package ratelimit protects the LLM provider's rate with a token-bucket
// limiter shared process-wide (per spec.md §5). The in-process bucket is the
// default; when memory.redis_url is configured, RedisLimiter shares the
// count across processes the way the teacher's redis clients share pub/sub
// state - a plain INCR/EXPIRE window rather than a bucket, since Redis
// doesn't give us a single-process-local ticking goroutine to refill a
// bucket with.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chronofact/chronofact/chronoerr"
)

// Limiter blocks the caller until either a slot is available or ctx's
// deadline is hit, in which case it returns chronoerr.ErrRateLimited.
type Limiter interface {
	Wait(ctx context.Context) error
}

type bucket struct {
	mtx        sync.Mutex
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket builds an in-process limiter refilling ratePerMin tokens
// per minute, up to a burst of ratePerMin tokens.
func NewTokenBucket(ratePerMin int) Limiter {
	if ratePerMin <= 0 {
		ratePerMin = 60
	}
	rate := float64(ratePerMin) / 60.0
	return &bucket{
		tokens:     float64(ratePerMin),
		max:        float64(ratePerMin),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *bucket) Wait(ctx context.Context) error {
	for {
		b.mtx.Lock()
		now := time.Now()
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens = min(b.max, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now

		if b.tokens >= 1 {
			b.tokens--
			b.mtx.Unlock()
			return nil
		}

		wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
		b.mtx.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", chronoerr.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}
