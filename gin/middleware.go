// Package gin adapts chaingate authorization decisions to the Gin
// framework: it reads the payment proof header, runs the authorizer, and
// translates the outcome to pass-through, 402 or 429.
package gin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaingate/chaingate"
)

// Context keys under which the middleware stores the decision.
const (
	TierKey    = "chaingate.tier"
	TxHashKey  = "chaingate.txHash"
	WarningKey = "chaingate.warning"
)

// MiddlewareOptions is the options for the Middleware.
type MiddlewareOptions struct {
	EndpointID      string
	PriceBook       *chaingate.PriceBook
	FreeTierMessage string
	PaidTierMessage string
}

// Option configures the Middleware.
type Option func(*MiddlewareOptions)

// WithEndpointID sets a fixed endpoint identifier instead of the route path.
func WithEndpointID(id string) Option {
	return func(o *MiddlewareOptions) {
		o.EndpointID = id
	}
}

// WithPriceBook resolves the per-call price from a price book by endpoint
// identifier, overriding the fixed price.
func WithPriceBook(book *chaingate.PriceBook) Option {
	return func(o *MiddlewareOptions) {
		o.PriceBook = book
	}
}

// WithFreeTierMessage overrides the 429 message for the free tier.
func WithFreeTierMessage(msg string) Option {
	return func(o *MiddlewareOptions) {
		o.FreeTierMessage = msg
	}
}

// WithPaidTierMessage overrides the 429 message for the paid tier.
func WithPaidTierMessage(msg string) Option {
	return func(o *MiddlewareOptions) {
		o.PaidTierMessage = msg
	}
}

// Middleware authorizes every request through the given authorizer.
// Rate-limited requests are rejected with 429 and a Retry-After header;
// admitted requests proceed with the tier, transaction hash and any
// degradation warning stored in the Gin context.
func Middleware(auth *chaingate.Authorizer, priceUSD float64, opts ...Option) gin.HandlerFunc {
	options := &MiddlewareOptions{
		FreeTierMessage: "Free tier limit reached. Provide payment proof for higher limits.",
		PaidTierMessage: "Paid tier request limit reached for this payment.",
	}
	for _, opt := range opts {
		opt(options)
	}

	return func(c *gin.Context) {
		endpoint := options.EndpointID
		if endpoint == "" {
			endpoint = c.FullPath()
		}
		price := priceUSD
		if options.PriceBook != nil {
			price = options.PriceBook.Price(endpoint)
		}

		result := auth.Authorize(c.Request.Context(), c.Request, price, endpoint)

		if result.RateLimitExceeded {
			writeRateLimited(c, result, options)
			return
		}

		c.Set(TierKey, result.Tier)
		if result.TxHash != "" {
			c.Set(TxHashKey, result.TxHash)
		}
		if result.Warning != "" {
			c.Set(WarningKey, result.Warning)
		}
		c.Header("X-Tier", string(result.Tier))
		c.Next()
	}
}

func writeRateLimited(c *gin.Context, result chaingate.AuthResult, options *MiddlewareOptions) {
	message := options.FreeTierMessage
	if result.Tier == chaingate.TierPaid {
		message = options.PaidTierMessage
	}
	retryAfter := int(time.Until(result.ResetAt).Seconds() + 1)
	if retryAfter < 1 {
		retryAfter = 1
	}
	resetTime := result.ResetAt.UTC().Format(time.RFC3339)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Reset", resetTime)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      "Rate limit exceeded",
		"tier":       result.Tier,
		"message":    message,
		"resetTime":  resetTime,
		"retryAfter": retryAfter,
	})
}

// RequirePayment writes a 402 response advertising how to pay for the
// resource. Endpoint handlers that refuse to serve free-tier traffic call
// this instead of their normal response.
func RequirePayment(c *gin.Context, reg *chaingate.ChainRegistry, priceUSD float64, description string) {
	body := chaingate.BuildPaymentRequired(reg, priceUSD, c.Request.URL.Path, description)
	c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
}

// Tier returns the tier the request was admitted under.
func Tier(c *gin.Context) chaingate.Tier {
	if v, ok := c.Get(TierKey); ok {
		if tier, ok := v.(chaingate.Tier); ok {
			return tier
		}
	}
	return chaingate.TierFree
}

// TxHash returns the verified payment transaction for paid requests.
func TxHash(c *gin.Context) string {
	if v, ok := c.Get(TxHashKey); ok {
		if hash, ok := v.(string); ok {
			return hash
		}
	}
	return ""
}

// Warning returns the degradation warning, if the request presented a
// proof that failed verification.
func Warning(c *gin.Context) string {
	if v, ok := c.Get(WarningKey); ok {
		if warning, ok := v.(string); ok {
			return warning
		}
	}
	return ""
}
