package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and tests.
// Entries are bounded by size and by maxTTL in addition to their own ttl.
type MemoryStore struct {
	entries *expirable.LRU[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most size entries, none older than maxTTL.
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 10000
	}
	return &MemoryStore{
		entries: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.entries.Remove(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
