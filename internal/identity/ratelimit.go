package identity

import (
	"context"
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled continuously over refillInterval.
type rateLimiter struct {
	mu             sync.Mutex
	tokens         int
	maxTokens      int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

func newRateLimiter(maxTokens int, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillInterval: interval,
		lastRefill:     time.Now(),
		now:            time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *rateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.take()
		if wait == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// take consumes a token and returns 0, or returns how long to wait before
// one could be available.
func (r *rateLimiter) take() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	elapsed := now.Sub(r.lastRefill)
	if elapsed >= r.refillInterval {
		r.tokens = r.maxTokens
		r.lastRefill = now
	} else {
		refill := int(float64(r.maxTokens) * (float64(elapsed) / float64(r.refillInterval)))
		if refill > 0 {
			r.tokens = min(r.maxTokens, r.tokens+refill)
			r.lastRefill = now
		}
	}

	if r.tokens > 0 {
		r.tokens--
		return 0
	}

	perToken := r.refillInterval / time.Duration(r.maxTokens)
	if perToken <= 0 {
		perToken = time.Millisecond
	}
	return perToken
}
