package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKind_Retryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want bool
	}{
		{KindRateLimitExceeded, true},
		{KindCircuitOpen, true},
		{KindProviderTimeout, true},
		{KindProviderServerError, true},
		{KindProviderRateLimited, true},
		{KindProviderAuthError, false},
		{KindProviderBadRequest, false},
		{KindQualityRejected, true},
	}

	for _, tc := range tests {
		if got := tc.kind.Retryable(); got != tc.want {
			t.Errorf("%s.Retryable() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestKind_CountsAgainstBreaker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want bool
	}{
		{KindRateLimitExceeded, false},
		{KindCircuitOpen, false},
		{KindProviderTimeout, true},
		{KindProviderServerError, true},
		{KindProviderRateLimited, true},
		{KindProviderAuthError, true},
		{KindProviderBadRequest, true},
		{KindQualityRejected, true},
	}

	for _, tc := range tests {
		if got := tc.kind.CountsAgainstBreaker(); got != tc.want {
			t.Errorf("%s.CountsAgainstBreaker() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestProviderError_WrappingAndMatching(t *testing.T) {
	t.Parallel()

	underlying := errors.New("connection reset")
	err := New(KindProviderServerError, "anthropic", "server error", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should reach the underlying error")
	}

	var pe *ProviderError
	wrapped := fmt.Errorf("attempt failed: %w", err)
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As should find the ProviderError through wrapping")
	}
	if pe.Kind != KindProviderServerError {
		t.Errorf("kind = %v, want provider_server_error", pe.Kind)
	}

	if !errors.Is(wrapped, New(KindProviderServerError, "", "", nil)) {
		t.Error("ProviderErrors should match by kind")
	}
	if errors.Is(wrapped, New(KindProviderTimeout, "", "", nil)) {
		t.Error("ProviderErrors of different kinds should not match")
	}
}

func TestGetKind(t *testing.T) {
	t.Parallel()

	if _, ok := GetKind(errors.New("plain")); ok {
		t.Error("plain errors should have no kind")
	}

	kind, ok := GetKind(New(KindQualityRejected, "openai", "too short", nil))
	if !ok || kind != KindQualityRejected {
		t.Errorf("GetKind = %v, %v; want quality_rejected, true", kind, ok)
	}
}

func TestIsRetryable_UnclassifiedDefaultsToRetryable(t *testing.T) {
	t.Parallel()

	if !IsRetryable(errors.New("something odd")) {
		t.Error("unclassified errors should be retryable")
	}
	if IsRetryable(New(KindProviderAuthError, "openai", "bad key", nil)) {
		t.Error("auth errors should not be retryable")
	}
}

func TestClassify_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"429 is remote rate limited", 429, KindProviderRateLimited},
		{"401 is auth", 401, KindProviderAuthError},
		{"403 is auth", 403, KindProviderAuthError},
		{"408 is timeout", 408, KindProviderTimeout},
		{"500 is server error", 500, KindProviderServerError},
		{"503 is server error", 503, KindProviderServerError},
		{"400 is bad request", 400, KindProviderBadRequest},
		{"422 is bad request", 422, KindProviderBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Classify("anthropic", NewStatusError(tc.status, "boom"))
			if err.Kind != tc.want {
				t.Errorf("kind = %v, want %v", err.Kind, tc.want)
			}
			if err.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", err.StatusCode, tc.status)
			}
			if err.Provider != "anthropic" {
				t.Errorf("provider = %q, want anthropic", err.Provider)
			}
		})
	}
}

func TestClassify_ContentHeuristics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit text", errors.New("rate limit reached for gpt-5.2-codex"), KindProviderRateLimited},
		{"quota text", errors.New("you exceeded your current quota"), KindProviderRateLimited},
		{"invalid key text", errors.New("invalid api key provided"), KindProviderAuthError},
		{"timeout text", errors.New("request timed out"), KindProviderTimeout},
		{"context length text", errors.New("context length exceeded for this model"), KindProviderBadRequest},
		{"unknown text", errors.New("upstream connect error"), KindProviderServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify("openai", tc.err); got.Kind != tc.want {
				t.Errorf("kind = %v, want %v", got.Kind, tc.want)
			}
		})
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	err := Classify("google", fmt.Errorf("call: %w", contextDeadline{}))
	if err.Kind != KindProviderTimeout {
		t.Errorf("kind = %v, want provider_timeout", err.Kind)
	}
}

// contextDeadline mimics a wrapped context.DeadlineExceeded.
type contextDeadline struct{}

func (contextDeadline) Error() string   { return "context deadline exceeded" }
func (contextDeadline) Timeout() bool   { return true }
func (contextDeadline) Temporary() bool { return true }

func TestClassify_PreservesExistingProviderError(t *testing.T) {
	t.Parallel()

	orig := New(KindProviderRateLimited, "anthropic", "remote rate limited", nil).
		WithRetryAfter(7 * time.Second)

	got := Classify("anthropic", fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Error("existing ProviderError should pass through unchanged")
	}
}

func TestClassify_RetryAfterHint(t *testing.T) {
	t.Parallel()

	err := Classify("openai", errors.New("429 too many requests, retry after 12s"))
	if err.RetryAfter != 12*time.Second {
		t.Errorf("retry after = %v, want 12s", err.RetryAfter)
	}

	err = Classify("openai", errors.New("429 too many requests"))
	if err.RetryAfter != 0 {
		t.Errorf("retry after without a hint = %v, want 0", err.RetryAfter)
	}
}

func TestAllProvidersFailedError(t *testing.T) {
	t.Parallel()

	last := New(KindProviderServerError, "google", "server error", nil)
	err := &AllProvidersFailedError{
		AgentKind: "engineer",
		Attempted: []string{"anthropic", "openai", "google"},
		LastErr:   last,
	}

	if !errors.Is(err, New(KindProviderServerError, "", "", nil)) {
		t.Error("unwrap should reach the last provider error")
	}

	msg := err.Error()
	for _, want := range []string{"engineer", "anthropic", "openai", "google"} {
		if !containsAny(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
