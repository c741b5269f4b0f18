package chaingate

import (
	"context"
	"time"
)

// Store is the shared key-value service that coordinates state across
// request handlers. It is the only shared mutable resource in the system:
// verification results, cache entries, cache locks, and rate-limit
// counters all live behind this interface under component-prefixed keys.
//
// Implementations must be safe for concurrent use, and every method must
// be a single atomic operation against the backend; callers never need
// multi-key transactions.
//
// A ttl of zero or less means the key does not expire.
type Store interface {
	// Get returns the value for key, or (nil, nil) if the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with the given TTL, replacing any
	// existing value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfNotExists atomically writes value under key only if the key is
	// currently absent. Returns true if the write happened.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete atomically deletes key only if its current value
	// equals expected. Returns true if the key was deleted.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// IncrementBy atomically adds delta to the integer counter stored at
	// key, creating it at delta if absent, and returns the new value. The
	// TTL is applied when the counter is created.
	IncrementBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
