package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LimiterStore is the shared state backend for sliding-window counters. A
// store hosts time-ordered weighted events per key and must implement
// CheckAndReserve as one indivisible operation: prune, sum, and conditional
// insert can never be observed separately by concurrent callers.
//
// Single-instance deployments use MemoryStore; multi-instance deployments
// point every instance at the same RedisStore.
type LimiterStore interface {
	// CheckAndReserve prunes events older than now-window, sums the
	// remaining weights, and inserts a new event of weight cost iff
	// sum+cost <= limit. Returns whether the reservation was granted.
	CheckAndReserve(ctx context.Context, key string, cost, limit int64, window time.Duration, now time.Time) (bool, error)

	// Release removes the most recent reservation of weight cost, used to
	// roll back a partial multi-counter acquire.
	Release(ctx context.Context, key string, cost int64, now time.Time) error

	// Usage returns the current in-window weight sum for the key.
	Usage(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
}

// event is one reservation in a memory-backed window.
type event struct {
	at     time.Time
	weight int64
}

// MemoryStore is the in-process LimiterStore. Each key's window is guarded
// by one mutex so check-and-reserve is a single critical section.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]*windowState
}

type windowState struct {
	mu     sync.Mutex
	events []event
	sum    int64
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*windowState)}
}

// CheckAndReserve implements LimiterStore.
func (s *MemoryStore) CheckAndReserve(_ context.Context, key string, cost, limit int64, window time.Duration, now time.Time) (bool, error) {
	ws := s.state(key)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.prune(now.Add(-window))

	if ws.sum+cost > limit {
		return false, nil
	}

	ws.events = append(ws.events, event{at: now, weight: cost})
	ws.sum += cost
	return true, nil
}

// Release implements LimiterStore. It drops the newest event of the given
// weight; reservations and rollbacks are paired, so the newest match is the
// one being compensated.
func (s *MemoryStore) Release(_ context.Context, key string, cost int64, _ time.Time) error {
	ws := s.state(key)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	for i := len(ws.events) - 1; i >= 0; i-- {
		if ws.events[i].weight == cost {
			ws.sum -= cost
			ws.events = append(ws.events[:i], ws.events[i+1:]...)
			return nil
		}
	}
	return nil
}

// Usage implements LimiterStore.
func (s *MemoryStore) Usage(_ context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	ws := s.state(key)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.prune(now.Add(-window))
	return ws.sum, nil
}

// state returns the window state for a key, creating it on first use.
func (s *MemoryStore) state(key string) *windowState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.keys[key]
	if !ok {
		ws = &windowState{}
		s.keys[key] = ws
	}
	return ws
}

// prune drops events at or before the cutoff. Events are appended in time
// order, so the expired prefix is contiguous.
func (ws *windowState) prune(cutoff time.Time) {
	idx := 0
	for idx < len(ws.events) && !ws.events[idx].at.After(cutoff) {
		ws.sum -= ws.events[idx].weight
		idx++
	}
	if idx > 0 {
		ws.events = append(ws.events[:0], ws.events[idx:]...)
	}
}
