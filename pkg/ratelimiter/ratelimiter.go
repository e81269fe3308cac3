// Package ratelimiter paces consecutive requests with a fixed delay.
package ratelimiter

import (
	"context"
	"time"
)

// RateLimiter enforces a fixed pause after each operation. It is not adaptive:
// every Wait blocks for the same delay regardless of how the operation went.
type RateLimiter struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a RateLimiter that pauses for delay. A non-positive delay makes Wait return immediately.
func New(delay time.Duration) *RateLimiter {
	return &RateLimiter{delay: delay, sleep: sleepContext}
}

// Delay returns the configured pause.
func (r *RateLimiter) Delay() time.Duration {
	return r.delay
}

// Wait blocks for the configured delay, or until the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.delay <= 0 {
		return nil
	}
	return r.sleep(ctx, r.delay)
}

// sleepContext sleeps for d unless ctx finishes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
