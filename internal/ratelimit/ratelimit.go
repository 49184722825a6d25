package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// RateLimiter paces successive page visits.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// SimpleRateLimiter keeps consecutive actions a random delay in
// [minDelay, maxDelay) apart. With equal bounds the delay is fixed.
type SimpleRateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	next     time.Time
	int64n   func(int64) int64
	now      func() time.Time
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		int64n:   rand.Int64N,
		now:      time.Now,
	}
}

// NewFixedRateLimiter waits exactly delay between actions.
func NewFixedRateLimiter(delay time.Duration) *SimpleRateLimiter {
	return NewSimpleRateLimiter(delay, delay)
}

// Wait blocks until the next action is allowed. The first call never
// blocks.
func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.next.IsZero() {
		if err := Sleep(ctx, r.next.Sub(r.now())); err != nil {
			return err
		}
	}

	r.next = r.now().Add(r.delay())
	return nil
}

func (r *SimpleRateLimiter) delay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.int64n(int64(r.maxDelay-r.minDelay)))
}

// Sleep waits for d or until ctx is done.
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
