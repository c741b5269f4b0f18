package chaingate

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"
)

const boltBucket = "chaingate"

// BoltStore is a Store backed by an embedded BoltDB database file. All
// data lives in a single file, so no external database process is needed.
// It gives a single-node deployment durable rate-limit counters and
// verification caches across restarts.
//
// Bolt serializes writes, which makes SetIfNotExists, CompareAndDelete
// and IncrementBy naturally atomic: each runs inside one write
// transaction.
type BoltStore struct {
	db *bolt.DB
}

// boltEntry wraps a stored value with its absolute expiry.
type boltEntry struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"` // unix nanoseconds, 0 = no expiry
}

func (e boltEntry) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixNano() > e.ExpiresAt
}

// NewBoltStore opens (or creates) a BoltDB database at the given path and
// ensures the bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or (nil, nil) if absent or expired.
// Expired entries are removed on read.
func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		var e boltEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if e.expired(time.Now()) {
			return b.Delete([]byte(key))
		}
		value = append([]byte(nil), e.Value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set writes value under key with the given TTL.
func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putEntry(tx, key, value, ttl)
	})
}

// SetIfNotExists atomically writes value only if key is absent or expired.
func (s *BoltStore) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var created bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if raw := b.Get([]byte(key)); raw != nil {
			var e boltEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			if !e.expired(time.Now()) {
				return nil
			}
		}
		created = true
		return putEntry(tx, key, value, ttl)
	})
	return created, err
}

// CompareAndDelete deletes key only if its current value equals expected.
func (s *BoltStore) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	var deleted bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		var e boltEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		if e.expired(time.Now()) || !bytes.Equal(e.Value, expected) {
			return nil
		}
		deleted = true
		return b.Delete([]byte(key))
	})
	return deleted, err
}

// IncrementBy adds delta to the counter at key, creating it if absent.
func (s *BoltStore) IncrementBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var next int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if raw := b.Get([]byte(key)); raw != nil {
			var e boltEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			if !e.expired(time.Now()) {
				current, err := strconv.ParseInt(string(e.Value), 10, 64)
				if err != nil {
					return NewGateError(ErrCodeStoreUnavailable, "value at key is not an integer", map[string]interface{}{"key": key})
				}
				next = current + delta
				e.Value = []byte(strconv.FormatInt(next, 10))
				raw, err := json.Marshal(e)
				if err != nil {
					return err
				}
				return b.Put([]byte(key), raw)
			}
		}
		next = delta
		return putEntry(tx, key, []byte(strconv.FormatInt(next, 10)), ttl)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
}

func putEntry(tx *bolt.Tx, key string, value []byte, ttl time.Duration) error {
	e := boltEntry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(boltBucket)).Put([]byte(key), raw)
}

// Ensure BoltStore implements Store
var _ Store = (*BoltStore)(nil)
