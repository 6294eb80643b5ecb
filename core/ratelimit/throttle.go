package ratelimit

import "time"

// AutoThrottle computes an additional pre-dispatch delay as window usage
// approaches the configured safety threshold. It is a pure function of its
// inputs and supplements the hard limiters; it never replaces them.
type AutoThrottle struct {
	threshold float64
	maxDelay  time.Duration
}

// NewAutoThrottle creates a throttle. Threshold is the usage fraction above
// which delay accrues; maxDelay caps the computed delay.
func NewAutoThrottle(threshold float64, maxDelay time.Duration) *AutoThrottle {
	return &AutoThrottle{threshold: threshold, maxDelay: maxDelay}
}

// DelayFor returns the scheduling delay for the given usage fraction.
// Usage at or below the threshold costs nothing; above it, delay scales
// linearly with the overage and clamps at maxDelay when usage hits 1.0.
func (t *AutoThrottle) DelayFor(usageFraction float64) time.Duration {
	if usageFraction <= t.threshold || t.maxDelay <= 0 {
		return 0
	}

	headroom := 1.0 - t.threshold
	if headroom <= 0 {
		return t.maxDelay
	}

	overage := (usageFraction - t.threshold) / headroom
	if overage > 1.0 {
		overage = 1.0
	}

	return time.Duration(overage * float64(t.maxDelay))
}
