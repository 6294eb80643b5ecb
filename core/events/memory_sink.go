package events

import "sync"

// MemorySink buffers events in memory. Intended for tests and for the CLI's
// dry-run inspection.
type MemorySink struct {
	mu          sync.Mutex
	attempts    []AttemptRecord
	transitions []BreakerTransition
	delays      []ThrottleDelay
}

// NewMemorySink creates an empty buffering sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// RecordAttempt implements Sink.
func (s *MemorySink) RecordAttempt(rec AttemptRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, rec)
}

// RecordBreakerTransition implements Sink.
func (s *MemorySink) RecordBreakerTransition(tr BreakerTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, tr)
}

// RecordThrottleDelay implements Sink.
func (s *MemorySink) RecordThrottleDelay(td ThrottleDelay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, td)
}

// Attempts returns a copy of recorded attempts.
func (s *MemorySink) Attempts() []AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttemptRecord, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// Transitions returns a copy of recorded breaker transitions.
func (s *MemorySink) Transitions() []BreakerTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BreakerTransition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Delays returns a copy of recorded throttle delays.
func (s *MemorySink) Delays() []ThrottleDelay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThrottleDelay, len(s.delays))
	copy(out, s.delays)
	return out
}
