// Package config loads and publishes relay configuration as immutable
// snapshots. A reload builds a complete new snapshot and swaps one atomic
// pointer; readers always observe exactly one generation and no snapshot is
// ever mutated after publication.
package config

import (
	"fmt"

	"github.com/adalundhe/relay/core/breaker"
	"github.com/adalundhe/relay/core/fallback"
	"github.com/adalundhe/relay/core/providers"
	"github.com/adalundhe/relay/core/ratelimit"
)

// ProviderConfig pairs a provider's client settings with its rate contract.
type ProviderConfig struct {
	Client providers.ClientConfig        `yaml:"client"`
	Limits ratelimit.ProviderLimitConfig `yaml:"limits"`
}

// Snapshot is one complete configuration generation.
type Snapshot struct {
	// Providers maps provider name to its configuration.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Chains maps agent kind to its fallback chain.
	Chains map[string]fallback.Chain `yaml:"chains"`

	// Breaker configures all circuit breakers.
	Breaker breaker.Config `yaml:"breaker"`

	// GlobalMaxConcurrent caps in-flight calls across all providers.
	// Zero disables the global cap.
	GlobalMaxConcurrent int `yaml:"global_max_concurrent"`

	// RedisAddr points every instance at a shared limiter store. Empty
	// selects the in-process store.
	RedisAddr string `yaml:"redis_addr"`
}

// DefaultSnapshot returns an empty snapshot with default breaker settings.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Providers: make(map[string]ProviderConfig),
		Chains:    make(map[string]fallback.Chain),
		Breaker:   breaker.DefaultConfig(),
	}
}

// Validate rejects snapshots that would misconfigure the limiters or
// reference providers that do not exist.
func (s *Snapshot) Validate() error {
	for name, pc := range s.Providers {
		if err := pc.Limits.Validate(); err != nil {
			return fmt.Errorf("provider %q limits: %w", name, err)
		}
	}

	for kind, chain := range s.Chains {
		if len(chain.Providers) == 0 {
			return fmt.Errorf("chain %q has no providers", kind)
		}
		for _, name := range chain.Providers {
			if _, ok := s.Providers[name]; !ok {
				return fmt.Errorf("chain %q references unknown provider %q", kind, name)
			}
		}
	}

	if s.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}
	if s.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("breaker recovery_timeout must be positive")
	}

	return nil
}

// LimitConfig returns the provider's rate contract from this snapshot.
func (s *Snapshot) LimitConfig(provider string) (ratelimit.ProviderLimitConfig, bool) {
	pc, ok := s.Providers[provider]
	return pc.Limits, ok
}

// Chain returns the agent kind's fallback chain from this snapshot.
func (s *Snapshot) Chain(agentKind string) (fallback.Chain, bool) {
	chain, ok := s.Chains[agentKind]
	return chain, ok
}
