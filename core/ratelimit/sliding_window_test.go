package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindowLimiter_CountersAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	window := time.Minute

	sw := NewSlidingWindowLimiterAt("anthropic", NewMemoryStore(), clock.Now)

	if granted, _ := sw.CheckAndReserve(ctx, CounterRequests, 1, 1, window); !granted {
		t.Fatal("request reservation should be granted")
	}
	if granted, _ := sw.CheckAndReserve(ctx, CounterRequests, 1, 1, window); granted {
		t.Fatal("second request should be refused")
	}

	if granted, _ := sw.CheckAndReserve(ctx, CounterTokens, 500, 1000, window); !granted {
		t.Error("token reservation should be unaffected by the request counter")
	}
}

func TestSlidingWindowLimiter_ReleaseRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	window := time.Minute

	sw := NewSlidingWindowLimiterAt("openai", NewMemoryStore(), clock.Now)

	if granted, _ := sw.CheckAndReserve(ctx, CounterTokens, 800, 1000, window); !granted {
		t.Fatal("token reservation should be granted")
	}
	if err := sw.Release(ctx, CounterTokens, 800); err != nil {
		t.Fatalf("Release: %v", err)
	}

	usage, err := sw.Usage(ctx, CounterTokens, window)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage != 0 {
		t.Errorf("usage after rollback = %d, want 0", usage)
	}
}

func TestSlidingWindowLimiter_ExactWindowBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	window := time.Minute

	sw := NewSlidingWindowLimiterAt("google", NewMemoryStore(), clock.Now)

	if granted, _ := sw.CheckAndReserve(ctx, CounterRequests, 1, 1, window); !granted {
		t.Fatal("initial reservation should be granted")
	}

	clock.Advance(59 * time.Second)
	if granted, _ := sw.CheckAndReserve(ctx, CounterRequests, 1, 1, window); granted {
		t.Error("reservation inside the rolling window should be refused")
	}

	clock.Advance(2 * time.Second)
	if granted, _ := sw.CheckAndReserve(ctx, CounterRequests, 1, 1, window); !granted {
		t.Error("reservation after the event slid out should be granted")
	}
}

func TestSlidingWindowLimiter_ProvidersShareStoreNotKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock()
	window := time.Minute
	store := NewMemoryStore()

	a := NewSlidingWindowLimiterAt("anthropic", store, clock.Now)
	b := NewSlidingWindowLimiterAt("openai", store, clock.Now)

	if granted, _ := a.CheckAndReserve(ctx, CounterRequests, 1, 1, window); !granted {
		t.Fatal("first provider should be granted")
	}
	if granted, _ := b.CheckAndReserve(ctx, CounterRequests, 1, 1, window); !granted {
		t.Error("second provider should not observe the first provider's usage")
	}
}
