package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryKV implements KV with a mutex-guarded map. Used by tests and for
// ephemeral runs; entries expire lazily on read.
type InMemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memEntry

	// now is swappable so tests can drive TTL expiry.
	now func() time.Time
}

var _ KV = (*InMemoryKV)(nil)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryKV creates an empty in-memory KV store.
func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// Get returns the value for key if present and unexpired.
func (s *InMemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Put writes a value with the given TTL.
func (s *InMemoryKV) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete removes a key.
func (s *InMemoryKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// ListPrefix returns all live keys with the given prefix.
func (s *InMemoryKV) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var keys []string
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) && now.Before(e.expiresAt) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Advance shifts the store's clock forward (testing TTL expiry).
func (s *InMemoryKV) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.now
	s.now = func() time.Time { return base().Add(d) }
}
