// Package echo adapts chaingate authorization decisions to the Echo
// framework, mirroring the gin adapter's contract.
package echo

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

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
// degradation warning stored in the Echo context.
func Middleware(auth *chaingate.Authorizer, priceUSD float64, opts ...Option) echo.MiddlewareFunc {
	options := &MiddlewareOptions{
		FreeTierMessage: "Free tier limit reached. Provide payment proof for higher limits.",
		PaidTierMessage: "Paid tier request limit reached for this payment.",
	}
	for _, opt := range opts {
		opt(options)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			endpoint := options.EndpointID
			if endpoint == "" {
				endpoint = c.Path()
			}
			price := priceUSD
			if options.PriceBook != nil {
				price = options.PriceBook.Price(endpoint)
			}

			result := auth.Authorize(c.Request().Context(), c.Request(), price, endpoint)

			if result.RateLimitExceeded {
				return writeRateLimited(c, result, options)
			}

			c.Set(TierKey, result.Tier)
			if result.TxHash != "" {
				c.Set(TxHashKey, result.TxHash)
			}
			if result.Warning != "" {
				c.Set(WarningKey, result.Warning)
			}
			c.Response().Header().Set("X-Tier", string(result.Tier))
			return next(c)
		}
	}
}

func writeRateLimited(c echo.Context, result chaingate.AuthResult, options *MiddlewareOptions) error {
	message := options.FreeTierMessage
	if result.Tier == chaingate.TierPaid {
		message = options.PaidTierMessage
	}
	retryAfter := int(time.Until(result.ResetAt).Seconds() + 1)
	if retryAfter < 1 {
		retryAfter = 1
	}
	resetTime := result.ResetAt.UTC().Format(time.RFC3339)

	c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
	c.Response().Header().Set("X-RateLimit-Reset", resetTime)
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"error":      "Rate limit exceeded",
		"tier":       result.Tier,
		"message":    message,
		"resetTime":  resetTime,
		"retryAfter": retryAfter,
	})
}

// RequirePayment writes a 402 response advertising how to pay for the
// resource.
func RequirePayment(c echo.Context, reg *chaingate.ChainRegistry, priceUSD float64, description string) error {
	body := chaingate.BuildPaymentRequired(reg, priceUSD, c.Request().URL.Path, description)
	return c.JSON(http.StatusPaymentRequired, body)
}

// Tier returns the tier the request was admitted under.
func Tier(c echo.Context) chaingate.Tier {
	if tier, ok := c.Get(TierKey).(chaingate.Tier); ok {
		return tier
	}
	return chaingate.TierFree
}

// TxHash returns the verified payment transaction for paid requests.
func TxHash(c echo.Context) string {
	if hash, ok := c.Get(TxHashKey).(string); ok {
		return hash
	}
	return ""
}

// Warning returns the degradation warning, if the request presented a
// proof that failed verification.
func Warning(c echo.Context) string {
	if warning, ok := c.Get(WarningKey).(string); ok {
		return warning
	}
	return ""
}
