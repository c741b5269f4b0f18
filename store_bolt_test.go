package chaingate

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "chaingate.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStore_SetGet(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}

	missing, err := store.Get(ctx, "absent")
	if err != nil || missing != nil {
		t.Errorf("Get(absent) = %q, %v, want nil, nil", missing, err)
	}
}

func TestBoltStore_TTLExpiry(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	got, err := store.Get(ctx, "k")
	if err != nil || got != nil {
		t.Errorf("Get after expiry = %q, %v, want nil, nil", got, err)
	}
}

func TestBoltStore_SetIfNotExists(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	created, err := store.SetIfNotExists(ctx, "lock", []byte("a"), time.Minute)
	if err != nil || !created {
		t.Fatalf("first SetIfNotExists = %v, %v, want true, nil", created, err)
	}
	created, err = store.SetIfNotExists(ctx, "lock", []byte("b"), time.Minute)
	if err != nil || created {
		t.Fatalf("second SetIfNotExists = %v, %v, want false, nil", created, err)
	}
}

func TestBoltStore_CompareAndDelete(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	store.Set(ctx, "lock", []byte("owner-1"), time.Minute)

	deleted, _ := store.CompareAndDelete(ctx, "lock", []byte("other"))
	if deleted {
		t.Error("deleted despite mismatched value")
	}
	deleted, _ = store.CompareAndDelete(ctx, "lock", []byte("owner-1"))
	if !deleted {
		t.Error("not deleted despite matching value")
	}
	if got, _ := store.Get(ctx, "lock"); got != nil {
		t.Error("key still present after CompareAndDelete")
	}
}

func TestBoltStore_IncrementBy(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	n, err := store.IncrementBy(ctx, "counter", 2, time.Minute)
	if err != nil || n != 2 {
		t.Fatalf("first IncrementBy = %d, %v, want 2, nil", n, err)
	}
	n, err = store.IncrementBy(ctx, "counter", 3, time.Minute)
	if err != nil || n != 5 {
		t.Fatalf("second IncrementBy = %d, %v, want 5, nil", n, err)
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chaingate.db")
	ctx := context.Background()

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	store.Set(ctx, "k", []byte("v"), time.Hour)
	store.Close()

	reopened, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, _ := reopened.Get(ctx, "k")
	if string(got) != "v" {
		t.Errorf("value after reopen = %q, want %q", got, "v")
	}
}
