package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenWait(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRateLimiter(2, time.Second)
	r.now = func() time.Time { return now }
	r.lastRefill = now

	if d := r.take(); d != 0 {
		t.Fatalf("first take waited %v", d)
	}
	if d := r.take(); d != 0 {
		t.Fatalf("second take waited %v", d)
	}
	if d := r.take(); d != 500*time.Millisecond {
		t.Errorf("third take wait = %v, want 500ms", d)
	}

	now = now.Add(600 * time.Millisecond)
	if d := r.take(); d != 0 {
		t.Errorf("after refill waited %v", d)
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	r := newRateLimiter(1, time.Hour)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
