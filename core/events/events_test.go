package events

import (
	"sync"
	"testing"
	"time"
)

func TestMemorySink_RecordsAndCopies(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()

	sink.RecordAttempt(AttemptRecord{Provider: "anthropic", Outcome: OutcomeSuccess})
	sink.RecordBreakerTransition(BreakerTransition{Provider: "anthropic", From: "closed", To: "open"})
	sink.RecordThrottleDelay(ThrottleDelay{Provider: "anthropic", Delay: time.Second})

	attempts := sink.Attempts()
	if len(attempts) != 1 || attempts[0].Provider != "anthropic" {
		t.Errorf("attempts = %+v, want one anthropic record", attempts)
	}

	// Mutating the returned slice must not touch the sink's state.
	attempts[0].Provider = "mutated"
	if got := sink.Attempts()[0].Provider; got != "anthropic" {
		t.Errorf("sink state changed through returned slice: %q", got)
	}

	if got := len(sink.Transitions()); got != 1 {
		t.Errorf("transitions = %d, want 1", got)
	}
	if got := len(sink.Delays()); got != 1 {
		t.Errorf("delays = %d, want 1", got)
	}
}

func TestMemorySink_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.RecordAttempt(AttemptRecord{Provider: "openai", Outcome: OutcomeRateLimited})
		}()
	}
	wg.Wait()

	if got := len(sink.Attempts()); got != 32 {
		t.Errorf("attempts = %d, want 32", got)
	}
}
