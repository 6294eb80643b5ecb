package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SlidingWindowLimiter counts requests and tokens for one provider over an
// exact rolling window, backed by a LimiterStore. Both counters share the
// same window; each reservation targets one counter.
type SlidingWindowLimiter struct {
	provider string
	store    LimiterStore
	now      func() time.Time
}

// NewSlidingWindowLimiter creates a limiter for one provider.
func NewSlidingWindowLimiter(provider string, store LimiterStore) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		provider: provider,
		store:    store,
		now:      time.Now,
	}
}

// NewSlidingWindowLimiterAt creates a limiter with an injected clock.
func NewSlidingWindowLimiterAt(provider string, store LimiterStore, now func() time.Time) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{provider: provider, store: store, now: now}
}

// CheckAndReserve atomically reserves cost against one counter. The store
// performs prune, sum, and insert in a single guarded operation, so the
// window limit holds under any number of concurrent callers.
func (sw *SlidingWindowLimiter) CheckAndReserve(ctx context.Context, kind CounterKind, cost, limit int64, window time.Duration) (bool, error) {
	granted, err := sw.store.CheckAndReserve(ctx, sw.key(kind), cost, limit, window, sw.now())
	if err != nil {
		return false, fmt.Errorf("sliding window %s/%s: %w", sw.provider, kind, err)
	}
	return granted, nil
}

// Release rolls back a reservation made by CheckAndReserve. Used by the
// coordinator when a later step of a multi-counter acquire is rejected.
func (sw *SlidingWindowLimiter) Release(ctx context.Context, kind CounterKind, cost int64) error {
	if err := sw.store.Release(ctx, sw.key(kind), cost, sw.now()); err != nil {
		return fmt.Errorf("sliding window release %s/%s: %w", sw.provider, kind, err)
	}
	return nil
}

// Usage returns the in-window weight sum for one counter.
func (sw *SlidingWindowLimiter) Usage(ctx context.Context, kind CounterKind, window time.Duration) (int64, error) {
	return sw.store.Usage(ctx, sw.key(kind), window, sw.now())
}

func (sw *SlidingWindowLimiter) key(kind CounterKind) string {
	return sw.provider + ":" + string(kind)
}
