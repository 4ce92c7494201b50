package cooldown

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryFlagStore is a process-local FlagStore for single-instance deployments and tests.
type MemoryFlagStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryFlagStore creates an empty store.
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (s *MemoryFlagStore) WithClock(now func() time.Time) *MemoryFlagStore {
	s.now = now
	return s
}

func (s *MemoryFlagStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryFlagStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Ping always succeeds.
func (s *MemoryFlagStore) Ping(context.Context) error {
	return nil
}
