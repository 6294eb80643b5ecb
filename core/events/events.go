// Package events defines the semantic observability events emitted by the
// rate-limit coordinator, circuit breakers, and fallback orchestrator. The
// core is agnostic to how events are exported; sinks decide.
package events

import (
	"time"
)

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeCircuitOpen     Outcome = "circuit_open"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeServerError     Outcome = "server_error"
	OutcomeAuthError       Outcome = "auth_error"
	OutcomeBadRequest      Outcome = "bad_request"
	OutcomeQualityRejected Outcome = "quality_rejected"
)

// AttemptRecord describes one provider attempt within a fallback chain. It
// is created per attempt and discarded after emission.
type AttemptRecord struct {
	RequestID string
	AgentKind string
	Provider  string
	StartTime time.Time
	Latency   time.Duration
	Outcome   Outcome
	Err       string
}

// BreakerTransition describes a circuit breaker state change.
type BreakerTransition struct {
	Provider string
	From     string
	To       string
	At       time.Time
}

// ThrottleDelay describes an auto-throttle delay applied before dispatch.
type ThrottleDelay struct {
	Provider      string
	UsageFraction float64
	Delay         time.Duration
	At            time.Time
}

// Sink receives semantic events. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Sink interface {
	RecordAttempt(rec AttemptRecord)
	RecordBreakerTransition(tr BreakerTransition)
	RecordThrottleDelay(td ThrottleDelay)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordAttempt(AttemptRecord)               {}
func (NopSink) RecordBreakerTransition(BreakerTransition) {}
func (NopSink) RecordThrottleDelay(ThrottleDelay)         {}
