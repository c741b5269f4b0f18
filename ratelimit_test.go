package chaingate

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *MemoryStore) {
	store := NewMemoryStore()
	return NewRateLimiter(store, cfg), store
}

func TestRateLimiter_FreeTierExhaustion(t *testing.T) {
	limiter, _ := newTestLimiter(RateLimitConfig{FreeLimit: 3, FreeWindow: time.Hour})
	ctx := context.Background()

	for i, wantRemaining := range []int{2, 1, 0} {
		result := limiter.CheckLimit(ctx, "free:abc", TierFree)
		if !result.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		if result.Remaining != wantRemaining {
			t.Errorf("request %d remaining = %d, want %d", i+1, result.Remaining, wantRemaining)
		}
	}

	result := limiter.CheckLimit(ctx, "free:abc", TierFree)
	if result.Allowed {
		t.Error("request over the limit was allowed")
	}
	if result.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", result.Remaining)
	}
	if !result.ResetAt.After(time.Now()) {
		t.Error("denied result has no future reset time")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	limiter, _ := newTestLimiter(RateLimitConfig{FreeLimit: 2, FreeWindow: time.Hour})
	ctx := context.Background()

	// Simulate an elapsed window.
	if err := limiter.SetRecord(ctx, "free:abc", 2, time.Now().Add(-time.Minute), TierFree); err != nil {
		t.Fatalf("SetRecord: %v", err)
	}

	result := limiter.CheckLimit(ctx, "free:abc", TierFree)
	if !result.Allowed {
		t.Fatal("request after window expiry denied")
	}
	if result.Remaining != 1 {
		t.Errorf("remaining = %d, want fresh window count of 1", result.Remaining)
	}
}

func TestRateLimiter_TiersAreIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(RateLimitConfig{
		FreeLimit: 1, FreeWindow: time.Hour,
		PaidLimit: 5, PaidWindow: time.Minute,
	})
	ctx := context.Background()

	if result := limiter.CheckLimit(ctx, "free:abc", TierFree); !result.Allowed {
		t.Fatal("first free request denied")
	}
	if result := limiter.CheckLimit(ctx, "free:abc", TierFree); result.Allowed {
		t.Fatal("free quota not exhausted after limit")
	}

	// Exhausted free quota must not touch paid quota.
	result := limiter.CheckLimit(ctx, "paid:0xdeadbeef", TierPaid)
	if !result.Allowed {
		t.Error("paid request denied by unrelated free exhaustion")
	}
	if result.Remaining != 4 {
		t.Errorf("paid remaining = %d, want 4", result.Remaining)
	}
}

func TestRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	var decisions []RateLimitDecision
	limiter := NewRateLimiter(failingStore{}, RateLimitConfig{
		FreeLimit:  10,
		FreeWindow: time.Hour,
		OnDecision: func(d RateLimitDecision) { decisions = append(decisions, d) },
	})

	result := limiter.CheckLimit(context.Background(), "free:abc", TierFree)
	if !result.Allowed {
		t.Error("store outage denied a request, want fail-open")
	}
	if result.Remaining != 9 {
		t.Errorf("fail-open remaining = %d, want 9", result.Remaining)
	}
	if len(decisions) != 1 {
		t.Fatalf("decision hook called %d times, want 1", len(decisions))
	}
	if decisions[0].Err == nil {
		t.Error("decision hook got nil error during store outage")
	}
}

func TestRateLimiter_Identifier(t *testing.T) {
	limiter, _ := newTestLimiter(RateLimitConfig{IPSalt: "pepper"})

	r := httptest.NewRequest("GET", "/data", nil)
	r.RemoteAddr = "9.9.9.9:1234"
	if got, want := limiter.Identifier(r, ""), "free:"+limiter.hashIP("9.9.9.9"); got != want {
		t.Errorf("remote addr identifier = %q, want %q", got, want)
	}

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	if got, want := limiter.Identifier(r, ""), "free:"+limiter.hashIP("1.2.3.4"); got != want {
		t.Errorf("forwarded identifier = %q, want %q", got, want)
	}

	if got, want := limiter.Identifier(r, "0xabc123"), "paid:0xabc123"; got != want {
		t.Errorf("paid identifier = %q, want %q", got, want)
	}
}

func TestRateLimiter_IdentifierSaltMatters(t *testing.T) {
	a, _ := newTestLimiter(RateLimitConfig{IPSalt: "salt-a"})
	b, _ := newTestLimiter(RateLimitConfig{IPSalt: "salt-b"})

	r := httptest.NewRequest("GET", "/data", nil)
	r.RemoteAddr = "9.9.9.9:1234"
	if a.Identifier(r, "") == b.Identifier(r, "") {
		t.Error("different salts produced the same identifier")
	}
}

func TestRateLimiter_ResetAndUsage(t *testing.T) {
	limiter, _ := newTestLimiter(RateLimitConfig{FreeLimit: 5, FreeWindow: time.Hour})
	ctx := context.Background()

	limiter.CheckLimit(ctx, "free:abc", TierFree)
	limiter.CheckLimit(ctx, "free:abc", TierFree)

	record, err := limiter.Usage(ctx, "free:abc")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if record == nil || record.Count != 2 {
		t.Fatalf("usage record = %+v, want count 2", record)
	}

	if err := limiter.Reset(ctx, "free:abc"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	record, err = limiter.Usage(ctx, "free:abc")
	if err != nil {
		t.Fatalf("Usage after reset: %v", err)
	}
	if record != nil {
		t.Errorf("usage after reset = %+v, want nil", record)
	}

	result := limiter.CheckLimit(ctx, "free:abc", TierFree)
	if result.Remaining != 4 {
		t.Errorf("remaining after reset = %d, want full fresh window", result.Remaining)
	}
}
