package chaingate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter enforces persistent, windowed request quotas per
// identifier, split into a free (IP-keyed, daily) and a paid
// (payment-keyed, per-minute) tier. Counters live in the shared Store so
// every request handler sees the same state.
//
// The limiter fails open: if the store is unavailable the request is
// allowed and the error is reported through the decision hook, never to
// the caller. Rate limiting here is abuse deterrence, not billing-grade
// metering, so availability wins over strict enforcement. For the same
// reason the increment is a read-then-write; under true concurrent load
// a window can overshoot its limit by a small bounded amount.
type RateLimiter struct {
	store Store
	cfg   RateLimitConfig
}

// NewRateLimiter creates a rate limiter over the given store.
func NewRateLimiter(store Store, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{store: store, cfg: cfg.withDefaults()}
}

func (l *RateLimiter) limit(tier Tier) (int, time.Duration) {
	if tier == TierPaid {
		return l.cfg.PaidLimit, l.cfg.PaidWindow
	}
	return l.cfg.FreeLimit, l.cfg.FreeWindow
}

// CheckLimit decides whether a request under the given identifier is
// allowed, incrementing its window counter when it is.
func (l *RateLimiter) CheckLimit(ctx context.Context, identifier string, tier Tier) RateLimitResult {
	now := time.Now()
	key := rateLimitPrefix + identifier

	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return l.failOpen(identifier, tier, err)
	}

	var record RateLimitRecord
	if raw == nil || json.Unmarshal(raw, &record) != nil || !now.Before(record.ResetAt) {
		// Absent, unreadable, or window elapsed: start a fresh window.
		return l.startWindow(ctx, key, identifier, tier, now)
	}

	recordMax, _ := l.limit(record.Tier)
	if record.Count >= recordMax {
		result := RateLimitResult{Allowed: false, Remaining: 0, ResetAt: record.ResetAt}
		l.decided(identifier, record.Tier, result, nil)
		return result
	}

	record.Count++
	ttl := record.ResetAt.Sub(now) + l.cfg.GraceTTL
	updated, _ := json.Marshal(record)
	if err := l.store.Set(ctx, key, updated, ttl); err != nil {
		return l.failOpen(identifier, tier, err)
	}

	result := RateLimitResult{Allowed: true, Remaining: recordMax - record.Count, ResetAt: record.ResetAt}
	l.decided(identifier, record.Tier, result, nil)
	return result
}

func (l *RateLimiter) startWindow(ctx context.Context, key, identifier string, tier Tier, now time.Time) RateLimitResult {
	maxRequests, window := l.limit(tier)
	record := RateLimitRecord{Count: 1, ResetAt: now.Add(window), Tier: tier}
	raw, _ := json.Marshal(record)
	if err := l.store.Set(ctx, key, raw, window+l.cfg.GraceTTL); err != nil {
		return l.failOpen(identifier, tier, err)
	}
	result := RateLimitResult{Allowed: true, Remaining: maxRequests - 1, ResetAt: record.ResetAt}
	l.decided(identifier, tier, result, nil)
	return result
}

func (l *RateLimiter) failOpen(identifier string, tier Tier, err error) RateLimitResult {
	maxRequests, window := l.limit(tier)
	result := RateLimitResult{Allowed: true, Remaining: maxRequests - 1, ResetAt: time.Now().Add(window)}
	l.decided(identifier, tier, result, err)
	return result
}

func (l *RateLimiter) decided(identifier string, tier Tier, result RateLimitResult, err error) {
	if l.cfg.OnDecision != nil {
		l.cfg.OnDecision(RateLimitDecision{Identifier: identifier, Tier: tier, Result: result, Err: err})
	}
}

// Identifier derives the rate-limit identifier for a request: the
// verified transaction reference for paid requests, otherwise a salted
// hash of the client IP. Paid quota follows the payment, so one payment
// cannot be replayed past the per-minute cap regardless of source IP;
// free quota follows the caller.
func (l *RateLimiter) Identifier(r *http.Request, txHash string) string {
	if txHash != "" {
		return "paid:" + txHash
	}
	return "free:" + l.hashIP(clientIP(r))
}

func (l *RateLimiter) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(l.cfg.IPSalt + ip))
	return hex.EncodeToString(sum[:16])
}

// clientIP extracts the caller's IP: first forwarded-for entry, then
// X-Real-IP, then the direct connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Reset clears the counter for an identifier (admin operation).
func (l *RateLimiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Delete(ctx, rateLimitPrefix+identifier)
}

// Usage returns the current record for an identifier, or nil if none.
func (l *RateLimiter) Usage(ctx context.Context, identifier string) (*RateLimitRecord, error) {
	raw, err := l.store.Get(ctx, rateLimitPrefix+identifier)
	if err != nil || raw == nil {
		return nil, err
	}
	var record RateLimitRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SetRecord overwrites the record for an identifier (admin operation).
func (l *RateLimiter) SetRecord(ctx context.Context, identifier string, count int, resetAt time.Time, tier Tier) error {
	record := RateLimitRecord{Count: count, ResetAt: resetAt, Tier: tier}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := time.Until(resetAt) + l.cfg.GraceTTL
	if ttl < time.Second {
		ttl = time.Second
	}
	return l.store.Set(ctx, rateLimitPrefix+identifier, raw, ttl)
}
