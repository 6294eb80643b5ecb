package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/adalundhe/relay/core/events"
)

// ConfigSource supplies the current rate contract for a provider. The
// coordinator reads it once per acquire so every acquire observes exactly
// one config generation.
type ConfigSource interface {
	LimitConfig(provider string) (ProviderLimitConfig, bool)
}

// StaticConfig is a fixed ConfigSource for single-generation setups and
// tests.
type StaticConfig map[string]ProviderLimitConfig

// LimitConfig implements ConfigSource.
func (c StaticConfig) LimitConfig(provider string) (ProviderLimitConfig, bool) {
	cfg, ok := c[provider]
	return cfg, ok
}

// Grant is a scoped admission for one provider call. Release frees the
// concurrency permits exactly once and is safe on every exit path,
// including panic and cancellation.
type Grant struct {
	Provider string

	once    sync.Once
	release []func()
}

// Release frees the grant's permits. Idempotent.
func (g *Grant) Release() {
	g.once.Do(func() {
		for i := len(g.release) - 1; i >= 0; i-- {
			g.release[i]()
		}
	})
}

// Coordinator composes the sliding window, token bucket, concurrency
// semaphore, and auto-throttle into one admission decision per provider per
// request. It exclusively owns all per-provider limiter state; callers only
// ever hold Grants.
type Coordinator struct {
	store  LimiterStore
	config ConfigSource
	sink   events.Sink
	global *ConcurrencySemaphore

	mu        sync.Mutex
	providers map[string]*limiterState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// limiterState is one provider's limiter set, rebuilt when its config
// generation changes. The sliding window survives rebuilds: its store keys
// on provider only, so accounting carries across reloads.
type limiterState struct {
	cfg      ProviderLimitConfig
	window   *SlidingWindowLimiter
	bucket   *TokenBucket
	sem      *ConcurrencySemaphore
	throttle *AutoThrottle
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithGlobalConcurrency caps in-flight calls across all providers.
func WithGlobalConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		c.global = NewConcurrencySemaphore(n)
	}
}

// WithSink routes throttle events to the given sink.
func WithSink(sink events.Sink) CoordinatorOption {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithSleeper injects the throttle sleep for deterministic tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) CoordinatorOption {
	return func(c *Coordinator) {
		c.sleep = sleep
	}
}

// NewCoordinator creates a coordinator over the given store and config
// source.
func NewCoordinator(store LimiterStore, config ConfigSource, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		config:    config,
		sink:      events.NopSink{},
		providers: make(map[string]*limiterState),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire admits one request for the provider, or rejects it before the
// provider is touched. The admission sequence runs cheap window counters
// first and the blocking semaphore last, and compensates partial
// reservations so a rejection never leaves quota consumed:
//
//  1. reserve one request in the sliding window
//  2. reserve tokenCost tokens in the sliding window (rollback 1 on reject)
//  3. spend a bucket token (rollback 1-2 on reject, rejection carries the
//     refill wait hint)
//  4. acquire concurrency permits, blocking until capacity or ctx done
//  5. apply the auto-throttle delay
//
// The returned Grant must be released when the provider call finishes.
func (c *Coordinator) Acquire(ctx context.Context, provider string, tokenCost int64) (*Grant, error) {
	st, err := c.stateFor(provider)
	if err != nil {
		return nil, err
	}

	if err := c.reserveWindows(ctx, st, provider, tokenCost); err != nil {
		return nil, err
	}

	if granted, waitHint := st.bucket.TryAcquire(); !granted {
		c.rollbackWindows(ctx, st, tokenCost)
		return nil, &RejectedError{Provider: provider, Limiter: "token_bucket", WaitHint: waitHint}
	}

	grant, err := c.acquirePermits(ctx, st, provider)
	if err != nil {
		c.rollbackWindows(ctx, st, tokenCost)
		return nil, err
	}

	if err := c.applyThrottle(ctx, st, provider); err != nil {
		grant.Release()
		c.rollbackWindows(ctx, st, tokenCost)
		return nil, err
	}

	return grant, nil
}

// reserveWindows atomically reserves the request and token counters,
// rolling back the request reservation when the token reservation is
// rejected.
func (c *Coordinator) reserveWindows(ctx context.Context, st *limiterState, provider string, tokenCost int64) error {
	window := st.cfg.Window()

	granted, err := st.window.CheckAndReserve(ctx, CounterRequests, 1, st.cfg.RequestLimit(), window)
	if err != nil {
		return err
	}
	if !granted {
		return &RejectedError{Provider: provider, Limiter: "sliding_window_requests"}
	}

	granted, err = st.window.CheckAndReserve(ctx, CounterTokens, tokenCost, st.cfg.TokenLimit(), window)
	if err != nil || !granted {
		// Compensate the request reservation from the first step.
		rbCtx, cancel := rollbackContext(ctx)
		defer cancel()
		_ = st.window.Release(rbCtx, CounterRequests, 1)

		if err != nil {
			return err
		}
		return &RejectedError{Provider: provider, Limiter: "sliding_window_tokens"}
	}

	return nil
}

// rollbackWindows compensates both window reservations.
func (c *Coordinator) rollbackWindows(ctx context.Context, st *limiterState, tokenCost int64) {
	rbCtx, cancel := rollbackContext(ctx)
	defer cancel()

	_ = st.window.Release(rbCtx, CounterTokens, tokenCost)
	_ = st.window.Release(rbCtx, CounterRequests, 1)
}

// acquirePermits takes the global permit (when configured) then the
// provider permit, releasing the global one if the provider wait is
// cancelled.
func (c *Coordinator) acquirePermits(ctx context.Context, st *limiterState, provider string) (*Grant, error) {
	grant := &Grant{Provider: provider}

	if c.global != nil {
		release, err := c.global.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		grant.release = append(grant.release, release)
	}

	release, err := st.sem.Acquire(ctx)
	if err != nil {
		grant.Release()
		return nil, err
	}
	grant.release = append(grant.release, release)

	return grant, nil
}

// applyThrottle sleeps for the auto-throttle delay derived from current
// window usage.
func (c *Coordinator) applyThrottle(ctx context.Context, st *limiterState, provider string) error {
	usage := c.usageFraction(ctx, st)
	delay := st.throttle.DelayFor(usage)
	if delay <= 0 {
		return nil
	}

	c.sink.RecordThrottleDelay(events.ThrottleDelay{
		Provider:      provider,
		UsageFraction: usage,
		Delay:         delay,
		At:            c.now(),
	})

	return c.sleep(ctx, delay)
}

// usageFraction returns the higher of the request and token window usage
// fractions, so either counter nearing its limit slows dispatch.
func (c *Coordinator) usageFraction(ctx context.Context, st *limiterState) float64 {
	window := st.cfg.Window()

	reqUsage, err := st.window.Usage(ctx, CounterRequests, window)
	if err != nil {
		return 0
	}
	tokUsage, err := st.window.Usage(ctx, CounterTokens, window)
	if err != nil {
		return 0
	}

	reqFrac := fraction(reqUsage, st.cfg.RequestLimit())
	tokFrac := fraction(tokUsage, st.cfg.TokenLimit())
	if tokFrac > reqFrac {
		return tokFrac
	}
	return reqFrac
}

func fraction(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit)
}

// ProviderStats is a snapshot of one provider's limiter state.
type ProviderStats struct {
	Provider     string
	RequestUsage int64
	TokenUsage   int64
	BucketTokens float64
	Semaphore    SemaphoreStats
}

// Stats returns a snapshot for one provider, or false if the coordinator
// has no state for it yet.
func (c *Coordinator) Stats(ctx context.Context, provider string) (ProviderStats, bool) {
	c.mu.Lock()
	st, ok := c.providers[provider]
	c.mu.Unlock()
	if !ok {
		return ProviderStats{}, false
	}

	window := st.cfg.Window()
	reqUsage, _ := st.window.Usage(ctx, CounterRequests, window)
	tokUsage, _ := st.window.Usage(ctx, CounterTokens, window)

	return ProviderStats{
		Provider:     provider,
		RequestUsage: reqUsage,
		TokenUsage:   tokUsage,
		BucketTokens: st.bucket.Tokens(),
		Semaphore:    st.sem.Stats(),
	}, true
}

// stateFor returns the provider's limiter state, building it on first use
// and rebuilding the bucket, semaphore, and throttle when the provider's
// config changed. Re-publishing an identical config is a no-op, so reloads
// are idempotent with respect to in-flight accounting.
//
// Grants issued against a replaced semaphore drain on their own release
// funcs, so after a real config change in-flight calls can transiently
// exceed the new MaxConcurrent, bounded by the old cap and lasting only
// until those grants finish. New acquires see the new cap immediately.
func (c *Coordinator) stateFor(provider string) (*limiterState, error) {
	cfg, ok := c.config.LimitConfig(provider)
	if !ok {
		cfg = DefaultProviderLimitConfig()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, exists := c.providers[provider]
	if exists && st.cfg == cfg {
		return st, nil
	}

	st = &limiterState{
		cfg:      cfg,
		window:   NewSlidingWindowLimiterAt(provider, c.store, c.now),
		bucket:   NewTokenBucketAt(cfg.BurstCapacity, cfg.RefillRatePerSecond, cfg.BurstCapacity, c.now),
		sem:      NewConcurrencySemaphore(cfg.MaxConcurrent),
		throttle: NewAutoThrottle(cfg.AutoThrottleThreshold, cfg.MaxThrottleDelay),
	}
	c.providers[provider] = st
	return st, nil
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rollbackContext derives a short-lived context for compensating writes so
// a caller's cancellation cannot strand a reservation.
func rollbackContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
}
