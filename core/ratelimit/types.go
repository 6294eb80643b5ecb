// Package ratelimit enforces per-provider rate contracts: exact sliding
// windows for requests and tokens, a token bucket for burst smoothing, a
// concurrency semaphore for in-flight caps, and an auto-throttle that slows
// dispatch as usage approaches the configured safety threshold. Every
// check-and-reserve is a single atomic operation; state is never checked in
// one call and committed in another.
package ratelimit

import (
	"errors"
	"time"
)

// CounterKind selects which sliding-window counter a reservation targets.
type CounterKind string

const (
	// CounterRequests counts requests per window.
	CounterRequests CounterKind = "requests"

	// CounterTokens counts estimated tokens per window.
	CounterTokens CounterKind = "tokens"
)

// ProviderLimitConfig is one provider's rate contract. Instances are
// immutable once published; a config reload produces a new value, never an
// in-place mutation.
type ProviderLimitConfig struct {
	RequestsPerMinute     int           `yaml:"requests_per_minute"`
	TokensPerMinute       int           `yaml:"tokens_per_minute"`
	BurstCapacity         float64       `yaml:"burst_capacity"`
	RefillRatePerSecond   float64       `yaml:"refill_rate_per_second"`
	MaxConcurrent         int           `yaml:"max_concurrent"`
	WindowSeconds         int           `yaml:"window_seconds"`
	AutoThrottleThreshold float64       `yaml:"auto_throttle_threshold"`
	MaxThrottleDelay      time.Duration `yaml:"max_throttle_delay"`
}

// DefaultProviderLimitConfig returns conservative defaults.
func DefaultProviderLimitConfig() ProviderLimitConfig {
	return ProviderLimitConfig{
		RequestsPerMinute:     60,
		TokensPerMinute:       90000,
		BurstCapacity:         10,
		RefillRatePerSecond:   1,
		MaxConcurrent:         8,
		WindowSeconds:         60,
		AutoThrottleThreshold: 0.8,
		MaxThrottleDelay:      5 * time.Second,
	}
}

// Window returns the sliding window duration.
func (c ProviderLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// RequestLimit scales requests-per-minute to the configured window.
func (c ProviderLimitConfig) RequestLimit() int64 {
	return scaleToWindow(int64(c.RequestsPerMinute), c.Window())
}

// TokenLimit scales tokens-per-minute to the configured window.
func (c ProviderLimitConfig) TokenLimit() int64 {
	return scaleToWindow(int64(c.TokensPerMinute), c.Window())
}

// scaleToWindow converts a per-minute limit to a per-window limit.
func scaleToWindow(perMinute int64, window time.Duration) int64 {
	if window == time.Minute {
		return perMinute
	}
	return perMinute * int64(window) / int64(time.Minute)
}

// Validate rejects configs that would disable a hard limiter by accident.
func (c ProviderLimitConfig) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return errors.New("requests_per_minute must be positive")
	}
	if c.TokensPerMinute <= 0 {
		return errors.New("tokens_per_minute must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("max_concurrent must be positive")
	}
	if c.AutoThrottleThreshold < 0 || c.AutoThrottleThreshold > 1 {
		return errors.New("auto_throttle_threshold must be in [0, 1]")
	}
	return nil
}

// ErrRateLimitExceeded is returned when a pre-dispatch reservation is
// rejected. The provider was never called.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RejectedError carries the limiter that rejected an acquire and an optional
// wait hint for callers that want to retry.
type RejectedError struct {
	Provider string
	Limiter  string
	WaitHint time.Duration
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.WaitHint > 0 {
		return "rate limit exceeded for " + e.Provider + " (" + e.Limiter + ", retry in " + e.WaitHint.String() + ")"
	}
	return "rate limit exceeded for " + e.Provider + " (" + e.Limiter + ")"
}

// Is matches ErrRateLimitExceeded so callers can branch with errors.Is.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
