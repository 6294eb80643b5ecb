package providers

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds named provider clients built from configuration. Every
// read and insert runs under one mutex, so a lookup never observes a
// half-constructed entry, and a construction failure leaves the registry
// unchanged.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// Register inserts a fully-constructed provider under the given name.
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = provider
}

// CreateFromConfig constructs and registers a provider. The client is built
// completely before the map is touched.
func (r *Registry) CreateFromConfig(ctx context.Context, name string, cfg ClientConfig) error {
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("provider %q: %w", name, err)
	}

	r.Register(name, provider)
	return nil
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// buildProvider dispatches on the configured type.
func buildProvider(ctx context.Context, cfg ClientConfig) (Provider, error) {
	switch cfg.Type {
	case TypeAnthropic:
		return NewAnthropicProvider(cfg)
	case TypeOpenAI:
		return NewOpenAIProvider(cfg)
	case TypeGoogle:
		return NewGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
