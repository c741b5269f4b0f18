package chaingate

import (
	"fmt"
	"math/big"
	"time"
)

// Tier is a request's verified payment class. It determines which
// rate-limit window applies.
type Tier string

const (
	// TierFree covers requests admitted without a verified payment.
	TierFree Tier = "free"
	// TierPaid covers requests admitted against a verified on-chain payment.
	TierPaid Tier = "paid"
)

// PaymentProof is the decoded form of a client-supplied payment proof
// header. It is untrusted input: every claim in it is checked against the
// referenced on-chain transaction before anything is granted. Proofs are
// created per request and never persisted.
type PaymentProof struct {
	TxHash    string `json:"txHash"`
	Chain     string `json:"chain,omitempty"`
	Token     string `json:"token,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// VerificationResult is the outcome of verifying a payment proof against
// the chain. Results are immutable once written and cached keyed by
// (transaction hash, expected amount).
type VerificationResult struct {
	Valid      bool   `json:"valid"`
	TxHash     string `json:"txHash,omitempty"`
	Payer      string `json:"payer,omitempty"`
	AmountPaid string `json:"amountPaid,omitempty"` // token minor units, decimal string
	Error      string `json:"error,omitempty"`
}

// AmountPaidUnits returns the transferred amount in token minor units.
// The second return is false when the result carries no amount.
func (r VerificationResult) AmountPaidUnits() (*big.Int, bool) {
	if r.AmountPaid == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(r.AmountPaid, 10)
	return n, ok
}

// RateLimitResult reports a single rate-limit decision.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimitRecord is the persistent counter state for one identifier.
// Once the window has elapsed the record is replaced wholesale; counts
// never carry over.
type RateLimitRecord struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
	Tier    Tier      `json:"tier"`
}

// AuthResult is the orchestrated per-request authorization decision.
// Every request resolves to exactly one outcome class; mapping
// RateLimitExceeded to HTTP 429 and unauthenticated-without-proof to
// HTTP 402 is the endpoint layer's job.
type AuthResult struct {
	Authenticated     bool
	Tier              Tier
	TxHash            string
	Error             string
	Warning           string
	RateLimitExceeded bool
	ResetAt           time.Time
}

// ResourceInfo describes the resource a payment grants access to.
type ResourceInfo struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentOption is one acceptable way to pay for a resource, expressed in
// the token's minor units on a CAIP-2 identified network.
type PaymentOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Amount            string `json:"amount"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// PaymentRequired is the body of an HTTP 402 response: the error, the
// acceptable payment options, and the resource being paid for.
type PaymentRequired struct {
	Error    string          `json:"error"`
	Accepts  []PaymentOption `json:"accepts"`
	Resource *ResourceInfo   `json:"resource,omitempty"`
}

// BuildPaymentRequired assembles a 402 body offering payment on every
// chain in the registry.
func BuildPaymentRequired(reg *ChainRegistry, priceUSD float64, resourceURL, description string) PaymentRequired {
	pr := PaymentRequired{
		Error: "Payment required",
		Resource: &ResourceInfo{
			URL:         resourceURL,
			Description: description,
			MimeType:    "application/json",
		},
	}
	for _, chain := range reg.All() {
		amount, err := usdToMinorUnits(priceUSD, chain.TokenDecimals)
		if err != nil {
			continue
		}
		network := fmt.Sprintf("eip155:%d", chain.ChainID)
		pr.Accepts = append(pr.Accepts, PaymentOption{
			Scheme:            "exact",
			Network:           network,
			Amount:            amount.String(),
			Asset:             fmt.Sprintf("%s/erc20:%s", network, chain.Token.Hex()),
			PayTo:             chain.PayTo.Hex(),
			MaxTimeoutSeconds: 300,
		})
	}
	return pr
}
