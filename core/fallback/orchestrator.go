package fallback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/relay/core/breaker"
	relayerrors "github.com/adalundhe/relay/core/errors"
	"github.com/adalundhe/relay/core/events"
	"github.com/adalundhe/relay/core/providers"
	"github.com/adalundhe/relay/core/ratelimit"
)

// tokenEstimateDivisor approximates tokens from prompt bytes when the
// caller supplies no estimate.
const tokenEstimateDivisor = 4

// Request is one incoming logical request.
type Request struct {
	AgentKind     string
	Messages      []providers.Message
	Params        providers.CallParams
	TokenEstimate int64
}

// Orchestrator walks the configured provider chain for each request. It
// owns nothing mutable across requests; all shared state lives behind the
// breaker registry and the rate-limit coordinator.
type Orchestrator struct {
	chains      ChainSource
	registry    *providers.Registry
	coordinator *ratelimit.Coordinator
	breakers    *breaker.Registry
	verifier    QualityVerifier
	sink        events.Sink
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVerifier replaces the default quality verifier.
func WithVerifier(v QualityVerifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithSink routes attempt records to the given sink.
func WithSink(sink events.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(
	chains ChainSource,
	registry *providers.Registry,
	coordinator *ratelimit.Coordinator,
	breakers *breaker.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		chains:      chains,
		registry:    registry,
		coordinator: coordinator,
		breakers:    breakers,
		verifier:    DefaultVerifier(),
		sink:        events.NopSink{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute tries each provider in the request's chain until one returns a
// usable response. Local refusals (rate limit, open circuit) skip to the
// next provider without touching provider health; retryable call failures
// count against the provider's breaker and advance the chain; auth and
// bad-request failures abort immediately since no fallback fixes them.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*providers.Response, error) {
	chain, ok := o.chains.Chain(req.AgentKind)
	if !ok || len(chain.Providers) == 0 {
		return nil, &relayerrors.AllProvidersFailedError{
			AgentKind: req.AgentKind,
			LastErr:   errors.New("no fallback chain configured"),
		}
	}

	requestID := uuid.NewString()
	estimate := req.tokenEstimate()

	var (
		attempted  []string
		lastErr    error
		dispatched bool
	)

	for _, name := range chain.Providers[:chain.Limit()] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, reached, err := o.attempt(ctx, requestID, req, chain, name, estimate)
		attempted = append(attempted, name)
		dispatched = dispatched || reached

		if resp != nil {
			return resp, nil
		}

		lastErr = err
		if err != nil && !relayerrors.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, &relayerrors.AllProvidersFailedError{
		AgentKind:         req.AgentKind,
		Attempted:         attempted,
		LastErr:           lastErr,
		NoProviderReached: !dispatched,
	}
}

// attempt runs one provider attempt end to end. reached reports whether the
// provider was actually called, as opposed to refused locally.
func (o *Orchestrator) attempt(
	ctx context.Context,
	requestID string,
	req Request,
	chain Chain,
	name string,
	estimate int64,
) (resp *providers.Response, reached bool, err error) {
	start := o.now()

	provider, ok := o.registry.Get(name)
	if !ok {
		o.logger.Warn("chain references unknown provider", "provider", name, "agent_kind", req.AgentKind)
		o.record(requestID, req.AgentKind, name, start, events.OutcomeServerError, "provider not registered")
		return nil, false, relayerrors.New(relayerrors.KindProviderServerError, name, "provider not registered", nil)
	}

	if !o.breakers.Allow(name) {
		o.record(requestID, req.AgentKind, name, start, events.OutcomeCircuitOpen, "")
		return nil, false, relayerrors.New(relayerrors.KindCircuitOpen, name, "circuit open", nil)
	}

	grant, err := o.coordinator.Acquire(ctx, name, estimate)
	if err != nil {
		// The provider was never reached, so a half-open probe slot the
		// Allow above may hold must be returned or the breaker would
		// wait on an outcome that is never recorded.
		o.breakers.ReleaseProbe(name)
		return nil, false, o.handleAcquireError(ctx, requestID, req.AgentKind, name, start, err)
	}
	defer grant.Release()

	resp, callErr := provider.Call(ctx, req.Messages, req.Params)
	if callErr != nil {
		return nil, true, o.handleCallError(requestID, req.AgentKind, name, start, callErr)
	}

	if chain.QualityCheckEnabled && !o.verifier.Check(req.AgentKind, resp) {
		// Unusable output is operationally equivalent to a failure.
		o.breakers.RecordOutcome(name, false)
		o.record(requestID, req.AgentKind, name, start, events.OutcomeQualityRejected, "")
		return nil, true, relayerrors.New(relayerrors.KindQualityRejected, name, "response failed quality check", nil)
	}

	o.breakers.RecordOutcome(name, true)
	o.record(requestID, req.AgentKind, name, start, events.OutcomeSuccess, "")
	return resp, true, nil
}

// handleAcquireError maps a coordinator rejection or cancellation. A local
// rate-limit rejection skips the provider without recording a breaker
// failure; pre-dispatch refusals say nothing about provider health.
func (o *Orchestrator) handleAcquireError(ctx context.Context, requestID, agentKind, name string, start time.Time, err error) error {
	if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		o.record(requestID, agentKind, name, start, events.OutcomeRateLimited, err.Error())
		return relayerrors.New(relayerrors.KindRateLimitExceeded, name, "no local capacity", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.record(requestID, agentKind, name, start, events.OutcomeServerError, err.Error())
	return relayerrors.Classify(name, err)
}

// handleCallError classifies a provider failure, feeds the breaker, and
// emits the attempt record.
func (o *Orchestrator) handleCallError(requestID, agentKind, name string, start time.Time, callErr error) error {
	pe := relayerrors.Classify(name, callErr)

	if pe.Kind.CountsAgainstBreaker() {
		o.breakers.RecordOutcome(name, false)
	}

	o.record(requestID, agentKind, name, start, outcomeForKind(pe.Kind), pe.Error())
	return pe
}

// record emits one attempt record to the sink.
func (o *Orchestrator) record(requestID, agentKind, provider string, start time.Time, outcome events.Outcome, errMsg string) {
	o.sink.RecordAttempt(events.AttemptRecord{
		RequestID: requestID,
		AgentKind: agentKind,
		Provider:  provider,
		StartTime: start,
		Latency:   o.now().Sub(start),
		Outcome:   outcome,
		Err:       errMsg,
	})
}

// outcomeForKind maps taxonomy kinds onto attempt outcomes.
func outcomeForKind(kind relayerrors.Kind) events.Outcome {
	switch kind {
	case relayerrors.KindRateLimitExceeded, relayerrors.KindProviderRateLimited:
		return events.OutcomeRateLimited
	case relayerrors.KindCircuitOpen:
		return events.OutcomeCircuitOpen
	case relayerrors.KindProviderTimeout:
		return events.OutcomeTimeout
	case relayerrors.KindProviderAuthError:
		return events.OutcomeAuthError
	case relayerrors.KindProviderBadRequest:
		return events.OutcomeBadRequest
	case relayerrors.KindQualityRejected:
		return events.OutcomeQualityRejected
	default:
		return events.OutcomeServerError
	}
}

// tokenEstimate returns the caller's estimate or a bytes/4 heuristic.
func (r Request) tokenEstimate() int64 {
	if r.TokenEstimate > 0 {
		return r.TokenEstimate
	}

	var total int64
	for _, msg := range r.Messages {
		total += int64(len(msg.Content))
	}
	estimate := total / tokenEstimateDivisor
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}
