package chaingate

import (
	"context"
	"net/http"
	"time"
)

// DefaultProofHeader is the HTTP header checked for payment proofs.
const DefaultProofHeader = "X-Payment-Proof"

// AuthDecisionContext is passed to after-decision hooks.
type AuthDecisionContext struct {
	Endpoint string
	PriceUSD float64
	Result   AuthResult
	Duration time.Duration
}

// AfterDecisionHook observes every authorization decision. Hooks run
// synchronously after the decision is made and cannot change it; attach
// logging or metrics here.
type AfterDecisionHook func(AuthDecisionContext)

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithAfterDecisionHook registers a hook to run after every decision.
func WithAfterDecisionHook(hook AfterDecisionHook) AuthorizerOption {
	return func(a *Authorizer) {
		a.afterDecisionHooks = append(a.afterDecisionHooks, hook)
	}
}

// WithProofHeader overrides the header carrying the payment proof.
func WithProofHeader(name string) AuthorizerOption {
	return func(a *Authorizer) {
		a.proofHeader = name
	}
}

// Authorizer composes the verifier and the rate limiter into one
// per-request admission decision. It holds no per-request state of its
// own; everything shared lives in the store behind the two components.
type Authorizer struct {
	verifier           *Verifier
	limiter            *RateLimiter
	proofHeader        string
	afterDecisionHooks []AfterDecisionHook
}

// NewAuthorizer creates an authorizer over the given verifier and limiter.
func NewAuthorizer(verifier *Verifier, limiter *RateLimiter, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		verifier:    verifier,
		limiter:     limiter,
		proofHeader: DefaultProofHeader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize decides how the request is admitted: as free tier, as paid
// tier, or not at all because a quota is exhausted. A proof that fails
// verification degrades the request to the free tier with a warning
// rather than rejecting it outright.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request, priceUSD float64, endpoint string) AuthResult {
	start := time.Now()
	result := a.authorize(ctx, r, priceUSD, endpoint)
	for _, hook := range a.afterDecisionHooks {
		hook(AuthDecisionContext{
			Endpoint: endpoint,
			PriceUSD: priceUSD,
			Result:   result,
			Duration: time.Since(start),
		})
	}
	return result
}

func (a *Authorizer) authorize(ctx context.Context, r *http.Request, priceUSD float64, endpoint string) AuthResult {
	proofHeader := r.Header.Get(a.proofHeader)

	// No proof: the request rides the free tier.
	if proofHeader == "" {
		check := a.limiter.CheckLimit(ctx, a.limiter.Identifier(r, ""), TierFree)
		if !check.Allowed {
			return AuthResult{
				Tier:              TierFree,
				Error:             "Rate limit exceeded for free tier",
				RateLimitExceeded: true,
				ResetAt:           check.ResetAt,
			}
		}
		return AuthResult{Authenticated: true, Tier: TierFree}
	}

	verification := a.verifier.Verify(ctx, proofHeader, priceUSD, endpoint)

	// Invalid proof: fall back to the free tier, carrying the
	// verification error as a non-fatal warning.
	if !verification.Valid {
		check := a.limiter.CheckLimit(ctx, a.limiter.Identifier(r, ""), TierFree)
		if !check.Allowed {
			return AuthResult{
				Tier:              TierFree,
				Error:             "Invalid payment proof and free tier rate limit exceeded. " + verification.Error,
				RateLimitExceeded: true,
				ResetAt:           check.ResetAt,
			}
		}
		return AuthResult{
			Authenticated: true,
			Tier:          TierFree,
			Warning:       "Payment verification failed: " + verification.Error + ". Serving as free tier request.",
		}
	}

	// Valid payment: quota is keyed by the verified transaction, not the
	// caller's IP.
	check := a.limiter.CheckLimit(ctx, a.limiter.Identifier(r, verification.TxHash), TierPaid)
	if !check.Allowed {
		return AuthResult{
			Tier:              TierPaid,
			TxHash:            verification.TxHash,
			Error:             "Rate limit exceeded for paid tier",
			RateLimitExceeded: true,
			ResetAt:           check.ResetAt,
		}
	}
	return AuthResult{Authenticated: true, Tier: TierPaid, TxHash: verification.TxHash}
}
