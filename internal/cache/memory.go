package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	claimedAt *time.Time
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process Store. Expiry is checked lazily on
// every read; physically removing stale entries is left to Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)

	s.entries[key] = &memoryEntry{
		value:     v,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}

	return snapshot(e), nil
}

func (s *MemoryStore) Claim(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	if e.claimedAt != nil {
		return nil, ErrAlreadyClaimed
	}

	claimed := s.now()
	e.claimedAt = &claimed

	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep removes physically expired entries and reports how many went away.
func (s *MemoryStore) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live (unexpired) entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := s.now()
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			count++
		}
	}
	return count
}

func snapshot(e *memoryEntry) *Entry {
	v := make([]byte, len(e.value))
	copy(v, e.value)

	out := &Entry{Value: v, ExpiresAt: e.expiresAt}
	if e.claimedAt != nil {
		t := *e.claimedAt
		out.ClaimedAt = &t
	}
	return out
}
