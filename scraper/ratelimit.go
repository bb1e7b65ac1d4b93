package scraper

import (
	"context"
	"sync"
	"time"
)

// rateLimiter spaces requests to one site. Wait blocks until the gap since
// the previous request reaches the configured delay, or until ctx ends.
// The lock is held across the wait, so concurrent callers are also
// serialized per site.
type rateLimiter struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

func newRateLimiter(delay time.Duration) *rateLimiter {
	return &rateLimiter{delay: delay}
}

func (rl *rateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rl.delay <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.last.IsZero() {
		if wait := rl.delay - time.Since(rl.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	rl.last = time.Now()
	return nil
}
