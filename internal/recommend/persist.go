package recommend

import (
	"context"
	"sync"
	"time"
)

// PersistentStore keeps the last catalog snapshot across process restarts.
// The cache only ever treats it as an optimization: a missing, expired or
// unreadable entry is a miss.
type PersistentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value; stores that support it drop the entry after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// persistedSnapshot is the stored form of a Snapshot. Only raw tags are kept;
// ParsedTags is rebuilt on restore.
type persistedSnapshot struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	Items   []Item    `json:"items"`
}

type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
