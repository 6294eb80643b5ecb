// Package breaker gates providers behind per-provider circuit breakers so a
// failing provider is not hammered while it recovers. While half-open,
// exactly one probe call is admitted; everyone else is refused until the
// probe resolves.
package breaker

import (
	"sync"
	"time"

	"github.com/adalundhe/relay/core/events"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed admits requests normally.
	StateClosed State = iota

	// StateOpen refuses requests until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen admits a single probe to test recovery.
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half_open",
}

// String returns the string representation of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Config configures breaker behavior, shared by all providers.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open circuit waits before admitting a
	// half-open probe.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// providerBreaker is the state machine for one provider. All fields are
// guarded by mu; Allow's open-to-half-open transition and the single-probe
// admission are decided inside the same critical section that reads the
// state, never as a separate check-then-act.
type providerBreaker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailure         time.Time
	lastProbe           time.Time
	probing             bool
}

// Registry owns all per-provider breaker state. Lookups and state machine
// operations never expose the underlying map or breaker structs.
type Registry struct {
	config Config
	sink   events.Sink
	now    func() time.Time

	mu       sync.Mutex
	breakers map[string]*providerBreaker
}

// Option configures a Registry.
type Option func(*Registry)

// WithSink routes transition events to the given sink.
func WithSink(sink events.Sink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a breaker registry.
func NewRegistry(config Config, opts ...Option) *Registry {
	r := &Registry{
		config:   config,
		sink:     events.NopSink{},
		now:      time.Now,
		breakers: make(map[string]*providerBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allow reports whether the provider may be attempted. An open circuit past
// its recovery timeout atomically transitions to half-open and admits the
// caller as the probe; concurrent callers during the probe are refused.
func (r *Registry) Allow(provider string) bool {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(b.lastFailure) < r.config.RecoveryTimeout {
			return false
		}
		r.transitionLocked(provider, b, StateHalfOpen)
		b.probing = true
		b.lastProbe = r.now()
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		b.lastProbe = r.now()
		return true
	default:
		return true
	}
}

// ReleaseProbe returns a half-open probe slot without recording an outcome.
// Callers use it when an admitted probe is refused locally before the
// provider is reached: the attempt said nothing about provider health, and
// holding the slot would exclude the provider forever. The next Allow may
// admit a fresh probe.
func (r *Registry) ReleaseProbe(provider string) {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
	}
}

// RecordOutcome feeds an attempt result into the provider's state machine.
// Success resets the failure count and closes a half-open circuit; failure
// increments the count, reopens a half-open circuit, and trips a closed one
// at the threshold.
func (r *Registry) RecordOutcome(provider string, success bool) {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		r.recordSuccessLocked(provider, b)
		return
	}
	r.recordFailureLocked(provider, b)
}

func (r *Registry) recordSuccessLocked(provider string, b *providerBreaker) {
	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.probing = false
		r.transitionLocked(provider, b, StateClosed)
	}
}

func (r *Registry) recordFailureLocked(provider string, b *providerBreaker) {
	b.consecutiveFailures++
	b.lastFailure = r.now()

	switch b.state {
	case StateHalfOpen:
		// Failed probe: back to open, cooldown restarts from now.
		b.probing = false
		r.transitionLocked(provider, b, StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= r.config.FailureThreshold {
			r.transitionLocked(provider, b, StateOpen)
		}
	}
}

// State returns the provider's current state.
func (r *Registry) State(provider string) State {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the provider's current failure streak.
func (r *Registry) ConsecutiveFailures(provider string) int {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// transitionLocked changes state and emits the transition. Callers hold
// b.mu.
func (r *Registry) transitionLocked(provider string, b *providerBreaker, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	r.sink.RecordBreakerTransition(events.BreakerTransition{
		Provider: provider,
		From:     from.String(),
		To:       to.String(),
		At:       r.now(),
	})
}

// breakerFor returns the provider's breaker, creating it on first use.
func (r *Registry) breakerFor(provider string) *providerBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[provider]
	if !ok {
		b = &providerBreaker{state: StateClosed}
		r.breakers[provider] = b
	}
	return b
}
