package ratelimit

import (
	"context"
	"sync"
)

// SemaphoreStats is a point-in-time snapshot of semaphore accounting.
type SemaphoreStats struct {
	Active        int
	Available     int
	TotalAcquired int64
	TotalQueued   int64
}

// ConcurrencySemaphore caps simultaneously in-flight calls for one scope
// (global or per provider). Acquire blocks cooperatively and honors context
// cancellation; the returned release function is safe to call from any exit
// path and frees the permit exactly once. All counters live behind the same
// mutex that guards acquisition, so Stats never observes a torn update.
type ConcurrencySemaphore struct {
	slots chan struct{}

	mu            sync.Mutex
	active        int
	totalAcquired int64
	totalQueued   int64
}

// NewConcurrencySemaphore creates a semaphore with maxConcurrent permits.
func NewConcurrencySemaphore(maxConcurrent int) *ConcurrencySemaphore {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	s := &ConcurrencySemaphore{
		slots: make(chan struct{}, maxConcurrent),
	}
	for i := 0; i < maxConcurrent; i++ {
		s.slots <- struct{}{}
	}
	return s
}

// Acquire takes a permit, blocking until one frees or ctx is done. Callers
// must invoke the returned release function when the guarded call finishes;
// deferred invocation keeps a permit from leaking on panic or cancellation.
func (s *ConcurrencySemaphore) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-s.slots:
		return s.grant(), nil
	default:
	}

	s.recordQueued()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.slots:
		return s.grant(), nil
	}
}

// grant records the acquisition and builds the single-use release.
func (s *ConcurrencySemaphore) grant() func() {
	s.mu.Lock()
	s.active++
	s.totalAcquired++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			s.slots <- struct{}{}
		})
	}
}

// recordQueued counts a caller that had to wait for capacity.
func (s *ConcurrencySemaphore) recordQueued() {
	s.mu.Lock()
	s.totalQueued++
	s.mu.Unlock()
}

// Stats returns current accounting.
func (s *ConcurrencySemaphore) Stats() SemaphoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SemaphoreStats{
		Active:        s.active,
		Available:     cap(s.slots) - s.active,
		TotalAcquired: s.totalAcquired,
		TotalQueued:   s.totalQueued,
	}
}
