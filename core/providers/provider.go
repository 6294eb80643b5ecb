// Package providers adapts third-party LLM SDKs to the single narrow
// contract the relay core depends on: send messages, get text and token
// counts back, and surface failures as classifiable errors.
package providers

import (
	"context"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CallParams tunes a single provider call. Zero values defer to the
// provider's configured defaults.
type CallParams struct {
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Response is a successful provider call result.
type Response struct {
	Text      string `json:"text"`
	Model     string `json:"model"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
}

// Provider is a single upstream LLM API. Call errors must classify under
// the relay error taxonomy; implementations wrap SDK failures before
// returning them.
type Provider interface {
	Name() string
	Call(ctx context.Context, messages []Message, params CallParams) (*Response, error)
	HealthCheck(ctx context.Context) error
}
