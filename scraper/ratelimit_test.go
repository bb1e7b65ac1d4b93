package scraper

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSpacesRequests(t *testing.T) {
	rl := newRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second request after %v, want at least 50ms", elapsed)
	}
}

func TestRateLimiterZeroDelay(t *testing.T) {
	rl := newRateLimiter(0)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("zero-delay limiter blocked for %v", elapsed)
	}
}

func TestRateLimiterCanceledContext(t *testing.T) {
	rl := newRateLimiter(time.Hour)

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); err != context.Canceled {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestRateLimiterCancelWhileWaiting(t *testing.T) {
	rl := newRateLimiter(time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("err=%v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait did not release on cancel, blocked %v", elapsed)
	}
}
