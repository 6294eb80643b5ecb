// Package fallback drives ordered provider chains: each incoming request
// walks its agent kind's chain, skipping providers the circuit breaker or
// rate-limit coordinator refuses, classifying call failures, and verifying
// response quality until one provider produces a usable answer.
package fallback

// Chain is the ordered provider list configured for one agent kind. Chains
// are loaded at startup or reload and are read-only during request
// processing.
type Chain struct {
	// Providers are tried in order.
	Providers []string `yaml:"providers"`

	// QualityCheckEnabled runs the quality verifier on successful
	// responses; a failed check advances the chain like a failure.
	QualityCheckEnabled bool `yaml:"quality_check_enabled"`

	// MaxAttempts bounds the number of providers tried. Zero means the
	// whole chain.
	MaxAttempts int `yaml:"max_attempts"`
}

// Limit returns the effective attempt bound for the chain.
func (c Chain) Limit() int {
	if c.MaxAttempts <= 0 || c.MaxAttempts > len(c.Providers) {
		return len(c.Providers)
	}
	return c.MaxAttempts
}

// ChainSource supplies the current chain for an agent kind. Implementations
// return immutable snapshots; the orchestrator reads once per request.
type ChainSource interface {
	Chain(agentKind string) (Chain, bool)
}

// StaticChains is a fixed ChainSource for tests and single-generation
// setups.
type StaticChains map[string]Chain

// Chain implements ChainSource.
func (c StaticChains) Chain(agentKind string) (Chain, bool) {
	chain, ok := c[agentKind]
	return chain, ok
}
