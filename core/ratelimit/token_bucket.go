package ratelimit

import (
	"sync"
	"time"
)

// infiniteWait is the wait hint reported when the bucket can never refill.
const infiniteWait = time.Duration(1<<63 - 1)

// TokenBucket smooths burst admission for one provider. Refill is a pure
// function of elapsed time. Every read and write of tokens and lastRefill
// happens inside one mutex hold; refilling outside the critical section is
// exactly the race this type exists to prevent.
type TokenBucket struct {
	capacity   float64
	refillRate float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	now func() time.Time
}

// NewTokenBucket creates a bucket starting at full capacity.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// NewTokenBucketAt creates a bucket with an injected clock and starting
// token count, for deterministic tests.
func NewTokenBucketAt(capacity, refillRate, tokens float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     tokens,
		lastRefill: now(),
		now:        now,
	}
}

// TryAcquire refills, then spends one token if available. It never blocks;
// when not granted, waitHint tells the caller how long until one token
// accrues. A non-positive refill rate yields an infinite hint.
func (tb *TokenBucket) TryAcquire() (granted bool, waitHint time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}

	if tb.refillRate <= 0 {
		return false, infiniteWait
	}

	needed := 1.0 - tb.tokens
	return false, time.Duration(needed / tb.refillRate * float64(time.Second))
}

// Tokens returns the current token count after refill.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// refillLocked adds elapsed*refillRate tokens, capped at capacity. Callers
// must hold tb.mu.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	tb.lastRefill = now

	if tb.refillRate <= 0 || elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}
