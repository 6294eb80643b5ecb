package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually-advanced clock for deterministic refill tests.
type fakeClock struct {
	base   time.Time
	offset atomic.Int64
}

func newFakeClock() *fakeClock {
	return &fakeClock{base: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.base.Add(time.Duration(c.offset.Load()))
}

func (c *fakeClock) Advance(d time.Duration) {
	c.offset.Add(int64(d))
}

func TestTokenBucket_StartsFull(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(5, 1)

	for i := 0; i < 5; i++ {
		granted, _ := tb.TryAcquire()
		if !granted {
			t.Fatalf("acquire %d should succeed from a full bucket", i+1)
		}
	}

	granted, _ := tb.TryAcquire()
	if granted {
		t.Error("acquire should fail once capacity is spent")
	}
}

func TestTokenBucket_WaitHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		capacity   float64
		refillRate float64
		drain      int
		wantHint   time.Duration
	}{
		{
			name:       "one token at 1 per second",
			capacity:   5,
			refillRate: 1,
			drain:      5,
			wantHint:   time.Second,
		},
		{
			name:       "one token at 2 per second",
			capacity:   4,
			refillRate: 2,
			drain:      4,
			wantHint:   500 * time.Millisecond,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			tb := NewTokenBucketAt(tc.capacity, tc.refillRate, tc.capacity, clock.Now)

			for i := 0; i < tc.drain; i++ {
				if granted, _ := tb.TryAcquire(); !granted {
					t.Fatalf("drain acquire %d failed", i+1)
				}
			}

			granted, hint := tb.TryAcquire()
			if granted {
				t.Fatal("acquire should fail after drain")
			}
			if hint != tc.wantHint {
				t.Errorf("waitHint = %v, want %v", hint, tc.wantHint)
			}
		})
	}
}

func TestTokenBucket_ZeroRefillRate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tb := NewTokenBucketAt(1, 0, 0, clock.Now)

	granted, hint := tb.TryAcquire()
	if granted {
		t.Fatal("acquire should fail with an empty bucket")
	}
	if hint != infiniteWait {
		t.Errorf("waitHint = %v, want infinite", hint)
	}
}

func TestTokenBucket_RefillAfterWait(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tb := NewTokenBucketAt(5, 1, 0, clock.Now)

	if granted, _ := tb.TryAcquire(); granted {
		t.Fatal("acquire should fail at zero tokens")
	}

	clock.Advance(5 * time.Second)

	var wg sync.WaitGroup
	var grantedCount atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if granted, _ := tb.TryAcquire(); granted {
				grantedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := grantedCount.Load(); got != 5 {
		t.Errorf("granted = %d, want 5 after a 5 second refill", got)
	}

	granted, hint := tb.TryAcquire()
	if granted {
		t.Fatal("sixth acquire should fail")
	}
	if hint != time.Second {
		t.Errorf("waitHint = %v, want 1s", hint)
	}
}

func TestTokenBucket_RefillCapsAtCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tb := NewTokenBucketAt(3, 10, 3, clock.Now)

	clock.Advance(time.Hour)

	if got := tb.Tokens(); got != 3 {
		t.Errorf("tokens = %v, want capacity 3", got)
	}
}

func TestTokenBucket_NeverNegativeNeverOverCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tb := NewTokenBucketAt(10, 100, 10, clock.Now)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tb.TryAcquire()
				if i%3 == 0 {
					clock.Advance(time.Millisecond)
				}
				tokens := tb.Tokens()
				if tokens < 0 || tokens > 10 {
					t.Errorf("tokens = %v, want within [0, 10]", tokens)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
