package chaingate

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation.
//
// It is suitable for tests and single-instance deployments where state
// doesn't need to survive restarts or be shared across processes. For
// distributed deployments, implement Store against a shared backend.
//
// Expired entries are collected lazily: on read they are treated as
// absent and removed, and writes occasionally sweep the whole map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get returns the value for key, or (nil, nil) if absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, nil
	}
	// Copy so callers can't mutate stored bytes.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set writes value under key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, value, ttl)
	return nil
}

// SetIfNotExists atomically writes value only if key is absent.
func (s *MemoryStore) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

// CompareAndDelete deletes key only if its current value equals expected.
func (s *MemoryStore) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// IncrementBy adds delta to the counter at key, creating it if absent.
func (s *MemoryStore) IncrementBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, NewGateError(ErrCodeStoreUnavailable, "value at key is not an integer", map[string]interface{}{"key": key})
		}
		current = n
		next := current + delta
		// Existing counter keeps its expiry.
		s.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(next, 10)), expiresAt: e.expiresAt}
		return next, nil
	}
	s.put(key, []byte(strconv.FormatInt(delta, 10)), ttl)
	return delta, nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// put writes an entry and sweeps the map every few hundred writes.
// Must be called with the lock held.
func (s *MemoryStore) put(key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)
	e := memoryEntry{value: stored}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e

	s.writes++
	if s.writes%256 == 0 {
		now := time.Now()
		for k, v := range s.entries {
			if v.expired(now) {
				delete(s.entries, k)
			}
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
