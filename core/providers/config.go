package providers

import (
	"fmt"
	"time"
)

// Type identifies a provider implementation.
type Type string

const (
	TypeAnthropic Type = "anthropic"
	TypeOpenAI    Type = "openai"
	TypeGoogle    Type = "google"
)

// ClientConfig configures one provider client.
type ClientConfig struct {
	// Type selects the implementation.
	Type Type `json:"type" yaml:"type"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the default model to use.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the default maximum tokens to generate.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Timeout bounds a single API request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultClientConfig returns sensible defaults for the given type.
func DefaultClientConfig(t Type) ClientConfig {
	cfg := ClientConfig{
		Type:        t,
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}

	switch t {
	case TypeAnthropic:
		cfg.Model = "claude-sonnet-4-5-20250901"
	case TypeOpenAI:
		cfg.Model = "gpt-5.2-codex"
	case TypeGoogle:
		cfg.Model = "gemini-2.5-pro"
	}

	return cfg
}

// Validate checks the configuration.
func (c ClientConfig) Validate() error {
	switch c.Type {
	case TypeAnthropic, TypeOpenAI, TypeGoogle:
	default:
		return fmt.Errorf("unknown provider type %q", c.Type)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s: api_key is required", c.Type)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%s: max_tokens must be positive", c.Type)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%s: temperature must be between 0 and 2", c.Type)
	}
	return nil
}

// withDefaults fills zero fields from the type's defaults.
func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig(c.Type)
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	return c
}
