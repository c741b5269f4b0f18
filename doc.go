// Package chaingate gates access to metered HTTP resources behind a
// cryptographically verifiable on-chain payment, with a free-quota
// fallback for unpaid callers.
//
// The package is built from four components:
//
//   - Verifier confirms that a client-supplied payment proof references a
//     real, successful ERC-20 transfer of sufficient value to the expected
//     recipient, using the chain itself as ground truth.
//   - Cache is a generic get-or-compute cache with a distributed lock so
//     that concurrent misses for one key trigger at most one computation.
//   - RateLimiter enforces persistent, windowed request quotas split into
//     a free (IP-keyed, daily) and a paid (transaction-keyed, per-minute)
//     tier.
//   - Authorizer composes the three into a single per-request decision:
//     allow as free, allow as paid, rate-limited, or needs-payment.
//
// All shared state lives in a Store, an interface over any key-value
// service with per-key TTL and an atomic set-if-not-exists primitive.
// MemoryStore suits tests and single-process deployments; BoltStore
// persists to an embedded database file. Distributed deployments should
// implement Store against a shared backend such as Redis.
//
// Framework adapters that translate authorization decisions into HTTP
// 402/429 responses live in the gin and echo subpackages.
package chaingate
