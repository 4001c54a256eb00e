package limiter

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count   int
	resetAt time.Time
}

// MemoryCounterStore is a mutex-guarded in-process CounterStore for
// single-instance deployments and tests.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryCounterStore builds an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryCounterStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryCounterStore) Hit(_ context.Context, key string, decay time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := s.counters[key]
	if c == nil || !now.Before(c.resetAt) {
		c = &memoryCounter{resetAt: now.Add(decay)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryCounterStore) TooMany(_ context.Context, key string, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[key]
	if c == nil || !s.now().Before(c.resetAt) {
		return false, nil
	}
	return c.count >= max, nil
}

func (s *MemoryCounterStore) AvailableIn(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters[key]
	if c == nil {
		return 0, nil
	}
	remaining := c.resetAt.Sub(s.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *MemoryCounterStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}
