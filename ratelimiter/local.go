package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-minute token and request budgets for one model.
type RateLimiter struct {
	TokensBucket   *TokenBucket
	RequestsBucket *TokenBucket
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a rate limiter with per-minute token and request budgets.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	refillInterval := time.Minute
	return &RateLimiter{
		TokensBucket:   NewTokenBucket(tokensPerMinute, tokensPerMinute, refillInterval),
		RequestsBucket: NewTokenBucket(requestsPerMinute, requestsPerMinute, refillInterval),
	}
}

// HasCapacity checks if tokens are available WITHOUT consuming them.
func (rl *RateLimiter) HasCapacity(numTokens int) bool {
	return rl.TokensBucket.HasCapacity(numTokens) && rl.RequestsBucket.HasCapacity(1)
}

// TryConsume atomically checks capacity and consumes tokens if available.
// A request always costs one slot from the request bucket.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	return rl.TokensBucket.TryConsume(numTokens) && rl.RequestsBucket.TryConsume(1)
}

// TimeUntilAvailable returns how long until the specified tokens would be
// available. This does not modify state.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	tokenWait := rl.TokensBucket.TimeUntilAvailable(tokens)
	requestWait := rl.RequestsBucket.TimeUntilAvailable(1)
	if tokenWait > requestWait {
		return tokenWait
	}
	return requestWait
}

// WaitAndConsume waits until tokens are available (up to maxWait), then
// consumes them. If maxWait is 0, there is no limit on how long to wait.
// Returns an error if the context is cancelled or maxWait is exceeded.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	waitDuration := rl.TimeUntilAvailable(tokens)

	if waitDuration > 0 {
		if maxWait > 0 && waitDuration > maxWait {
			return fmt.Errorf("rate limit wait time %v exceeds max wait %v", waitDuration, maxWait)
		}

		timer := time.NewTimer(waitDuration)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if !rl.TryConsume(tokens) {
		return fmt.Errorf("failed to acquire tokens after waiting")
	}

	return nil
}

// TokenBucket implements a token bucket rate limit algorithm.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       int
	remaining      int
	refillInterval time.Duration
	lastRefill     time.Time
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(capacity int, initialTokens int, refillInterval time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		remaining:      initialTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
	}
}

// HasCapacity checks if tokens are available WITHOUT consuming them.
func (tb *TokenBucket) HasCapacity(tokens int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	remaining := tb.remaining
	if now.Sub(tb.lastRefill) >= tb.refillInterval {
		remaining = tb.capacity
	}
	return tokens <= remaining
}

// TryConsume tries to consume a specified number of tokens from the bucket.
func (tb *TokenBucket) TryConsume(tokens int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillInterval {
		tb.remaining = tb.capacity
		tb.lastRefill = now
	}
	if tokens <= tb.remaining {
		tb.remaining -= tokens
		return true
	}
	return false
}

// TimeUntilAvailable returns how long until tokens would be available,
// accounting for partial refills based on elapsed time. Read-only.
func (tb *TokenBucket) TimeUntilAvailable(tokens int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	timeSinceLastRefill := now.Sub(tb.lastRefill)

	effectiveRemaining := tb.remaining
	if timeSinceLastRefill >= tb.refillInterval {
		effectiveRemaining = tb.capacity
	} else if timeSinceLastRefill > 0 {
		replenishedTokens := int(float64(tb.capacity) * (float64(timeSinceLastRefill) / float64(tb.refillInterval)))
		effectiveRemaining = min(tb.capacity, tb.remaining+replenishedTokens)
	}

	if tokens <= effectiveRemaining {
		return 0
	}

	tokensNeeded := tokens - effectiveRemaining
	tokenRefillRate := float64(tb.capacity) / float64(tb.refillInterval)
	waitDuration := time.Duration(float64(tokensNeeded) / tokenRefillRate)

	// Small buffer (10% extra time) so the refill has landed when we retry.
	return waitDuration + (waitDuration / 10)
}
