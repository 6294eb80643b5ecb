// Package errors defines the failure taxonomy for provider calls and the
// local admission path, with classification helpers used by the fallback
// orchestrator to decide whether an error is recoverable.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies where a failure originated and how it should be handled.
type Kind int

const (
	// KindRateLimitExceeded indicates the local coordinator rejected the
	// request before dispatch. The provider was never called.
	KindRateLimitExceeded Kind = iota

	// KindCircuitOpen indicates the provider's circuit breaker refused the
	// request before dispatch.
	KindCircuitOpen

	// KindProviderTimeout indicates the provider call exceeded its deadline.
	KindProviderTimeout

	// KindProviderServerError indicates a 5xx response from the provider.
	KindProviderServerError

	// KindProviderRateLimited indicates a remote 429 from the provider.
	KindProviderRateLimited

	// KindProviderAuthError indicates a 401 or 403 from the provider.
	KindProviderAuthError

	// KindProviderBadRequest indicates a 4xx other than auth or 429.
	KindProviderBadRequest

	// KindQualityRejected indicates a transport-level success whose payload
	// failed quality verification.
	KindQualityRejected
)

var kindNames = map[Kind]string{
	KindRateLimitExceeded:   "rate_limit_exceeded",
	KindCircuitOpen:         "circuit_open",
	KindProviderTimeout:     "provider_timeout",
	KindProviderServerError: "provider_server_error",
	KindProviderRateLimited: "provider_rate_limited",
	KindProviderAuthError:   "provider_auth_error",
	KindProviderBadRequest:  "provider_bad_request",
	KindQualityRejected:     "quality_rejected",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether the fallback orchestrator should advance to the
// next provider in the chain. Auth and bad-request failures are surfaced
// immediately since no alternate provider will fix them.
func (k Kind) Retryable() bool {
	switch k {
	case KindProviderAuthError, KindProviderBadRequest:
		return false
	default:
		return true
	}
}

// CountsAgainstBreaker reports whether the failure is a provider-health
// signal. Local pre-dispatch rejections say nothing about provider health.
// A remote 429 does count: a provider that keeps rate-limiting us is not
// currently usable.
func (k Kind) CountsAgainstBreaker() bool {
	switch k {
	case KindRateLimitExceeded, KindCircuitOpen:
		return false
	default:
		return true
	}
}

// ProviderError wraps a failure with its taxonomy kind.
type ProviderError struct {
	Kind       Kind
	Provider   string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Underlying error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Provider, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// Is matches against another ProviderError by kind.
func (e *ProviderError) Is(target error) bool {
	var pe *ProviderError
	if errors.As(target, &pe) {
		return e.Kind == pe.Kind
	}
	return false
}

// New creates a ProviderError with the given kind.
func New(kind Kind, provider, message string, underlying error) *ProviderError {
	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
	}
}

// WithStatusCode attaches the HTTP status code.
func (e *ProviderError) WithStatusCode(code int) *ProviderError {
	e.StatusCode = code
	return e
}

// WithRetryAfter attaches the remote retry-after hint.
func (e *ProviderError) WithRetryAfter(d time.Duration) *ProviderError {
	e.RetryAfter = d
	return e
}

// GetKind extracts the taxonomy kind from an error.
func GetKind(err error) (Kind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether the fallback chain should continue past err.
// Unclassified errors are treated as retryable server-side failures.
func IsRetryable(err error) bool {
	if kind, ok := GetKind(err); ok {
		return kind.Retryable()
	}
	return true
}

// AllProvidersFailedError is the terminal failure returned when every
// provider in a fallback chain has been attempted or skipped.
type AllProvidersFailedError struct {
	AgentKind string
	Attempted []string
	LastErr   error

	// NoProviderReached is true when every attempt was refused locally
	// (rate limiter or open circuit) before any provider was called. It
	// distinguishes "the whole chain is exhausted" from "specific
	// providers failed".
	NoProviderReached bool
}

// Error implements the error interface.
func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for %q (attempted: %s): %v",
		e.AgentKind, strings.Join(e.Attempted, ", "), e.LastErr)
}

// Unwrap returns the last provider error.
func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastErr
}
