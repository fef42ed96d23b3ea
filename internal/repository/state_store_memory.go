package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

func (e memEntry) isExpired(now time.Time) bool {
	return e.hasTTL && now.After(e.expiresAt)
}

type memoryStateStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[string]memEntry
}

// NewMemoryStateStore returns a process-local store. A nil clock uses the
// wall clock.
func NewMemoryStateStore(clock clockwork.Clock) StateStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &memoryStateStore{
		clock:   clock,
		entries: make(map[string]memEntry),
	}
}

func (s *memoryStateStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so callers can reuse their buffer.
	entry := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.hasTTL = true
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *memoryStateStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *memoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStateStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *memoryStateStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var n int64
	for key, entry := range s.entries {
		if entry.isExpired(now) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// lookup returns the live entry for key, evicting it if it has expired.
func (s *memoryStateStore) lookup(key string) (memEntry, bool) {
	now := s.clock.Now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return memEntry{}, false
	}
	if entry.isExpired(now) {
		s.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, still := s.entries[key]; still && cur.isExpired(now) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return memEntry{}, false
	}
	return entry, true
}
