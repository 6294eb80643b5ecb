package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusCoder is satisfied by the SDK error types of every provider we call.
type statusCoder interface {
	StatusCode() int
}

// Classify maps a raw provider call error onto the taxonomy. It prefers an
// explicit HTTP status code when the error exposes one, then falls back to
// context and network inspection, then to string heuristics. Unrecognized
// errors classify as server errors so the fallback chain keeps moving.
func Classify(provider string, err error) *ProviderError {
	if pe := existingProviderError(err); pe != nil {
		return pe
	}

	if status, ok := statusFromError(err); ok {
		return ClassifyStatus(provider, status, err)
	}

	if isTimeout(err) {
		return New(KindProviderTimeout, provider, "call timed out", err)
	}

	return classifyByContent(provider, err)
}

// existingProviderError returns err's ProviderError if it already carries one.
func existingProviderError(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// statusFromError extracts an HTTP status code when the error exposes one.
func statusFromError(err error) (int, bool) {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.status, true
	}

	return 0, false
}

// ClassifyStatus maps an HTTP status code onto the taxonomy. Provider
// clients call it directly when their SDK exposes the response status.
func ClassifyStatus(provider string, status int, err error) *ProviderError {
	switch {
	case status == http.StatusTooManyRequests:
		return New(KindProviderRateLimited, provider, "remote rate limited", err).
			WithStatusCode(status).
			WithRetryAfter(retryAfterFromError(err))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(KindProviderAuthError, provider, "authentication rejected", err).
			WithStatusCode(status)
	case status == http.StatusRequestTimeout:
		return New(KindProviderTimeout, provider, "request timeout", err).
			WithStatusCode(status)
	case status >= 500:
		return New(KindProviderServerError, provider, "server error", err).
			WithStatusCode(status)
	case status >= 400:
		return New(KindProviderBadRequest, provider, "bad request", err).
			WithStatusCode(status)
	default:
		return New(KindProviderServerError, provider, "unexpected status", err).
			WithStatusCode(status)
	}
}

// isTimeout reports whether the error is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyByContent applies string heuristics for SDK errors that do not
// expose a status code.
func classifyByContent(provider string, err error) *ProviderError {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "429", "rate limit", "too many requests", "quota"):
		return New(KindProviderRateLimited, provider, "remote rate limited", err).
			WithRetryAfter(retryAfterFromError(err))
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "invalid api key", "invalid x-api-key"):
		return New(KindProviderAuthError, provider, "authentication rejected", err)
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return New(KindProviderTimeout, provider, "call timed out", err)
	case containsAny(msg, "400", "invalid request", "invalid_request", "context length", "malformed"):
		return New(KindProviderBadRequest, provider, "bad request", err)
	default:
		return New(KindProviderServerError, provider, "provider failure", err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// retryAfterFromError parses a "retry after Ns" hint out of the error text.
// Providers embed the Retry-After header value in their error messages.
func retryAfterFromError(err error) time.Duration {
	fields := strings.Fields(strings.ToLower(err.Error()))
	for i, f := range fields {
		if f != "after" || i+1 >= len(fields) {
			continue
		}
		raw := strings.TrimRight(fields[i+1], "s.,;")
		if secs, perr := strconv.Atoi(raw); perr == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// statusError adapts a bare status code into an error for tests and for
// providers whose SDKs surface codes without a typed error.
type statusError struct {
	status int
	msg    string
}

// NewStatusError creates an error carrying an HTTP status code.
func NewStatusError(status int, msg string) error {
	return &statusError{status: status, msg: msg}
}

func (e *statusError) Error() string {
	return strconv.Itoa(e.status) + ": " + e.msg
}
