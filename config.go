package chaingate

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-level configuration for the embedding
// application. It carries everything the components need; the application
// constructs the components once from it and passes them by reference.
type Config struct {
	// PayTo is the 0x address expected to receive payments on all chains.
	PayTo string `env:"CHAINGATE_PAY_TO"`
	// RPCEthereum and RPCBase override the default public RPC endpoints.
	RPCEthereum string `env:"RPC_ETH" envDefault:"https://eth.llamarpc.com"`
	RPCBase     string `env:"RPC_BASE" envDefault:"https://mainnet.base.org"`
	// DefaultChain is assumed when a proof is a bare transaction hash.
	DefaultChain string `env:"CHAINGATE_DEFAULT_CHAIN" envDefault:"base"`
	// IPSalt salts the hash of client IPs used as free-tier identifiers.
	IPSalt string `env:"CHAINGATE_IP_SALT"`

	FreeLimit int `env:"CHAINGATE_FREE_LIMIT" envDefault:"10"`
	PaidLimit int `env:"CHAINGATE_PAID_LIMIT" envDefault:"60"`
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validate checks the configuration on startup so misconfiguration fails
// fast instead of surfacing as verification errors at request time.
func (c Config) Validate() error {
	if !addressPattern.MatchString(c.PayTo) {
		return NewGateError(ErrCodeInvalidConfig, "CHAINGATE_PAY_TO must be a 0x-prefixed 40-hex-digit address", nil)
	}
	for name, raw := range map[string]string{"RPC_ETH": c.RPCEthereum, "RPC_BASE": c.RPCBase} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return NewGateError(ErrCodeInvalidConfig, name+" must be an http(s) URL", map[string]interface{}{"value": raw})
		}
	}
	if c.DefaultChain == "" {
		return NewGateError(ErrCodeInvalidConfig, "CHAINGATE_DEFAULT_CHAIN must not be empty", nil)
	}
	if c.FreeLimit <= 0 || c.PaidLimit <= 0 {
		return NewGateError(ErrCodeInvalidConfig, "rate limits must be positive", nil)
	}
	return nil
}

// VerifierConfig controls payment verification.
type VerifierConfig struct {
	// DefaultChain is assumed for bare-hash proofs.
	DefaultChain string
	// TolerancePercent is how far below the expected amount a transfer may
	// fall and still count as payment. Default 5.
	TolerancePercent int64
	// CacheTTL bounds how long verification results are kept. Chain
	// confirmation state doesn't change once finalized; the TTL only
	// bounds store growth. Default 1 hour.
	CacheTTL time.Duration
	// RPCTimeout bounds each chain read. There are no internal retries; a
	// timed-out verification is a terminal, normal outcome. Default 10s.
	RPCTimeout time.Duration
}

func (c VerifierConfig) withDefaults() VerifierConfig {
	if c.DefaultChain == "" {
		c.DefaultChain = "base"
	}
	if c.TolerancePercent <= 0 {
		c.TolerancePercent = 5
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 10 * time.Second
	}
	return c
}

// CacheConfig controls a Cache instance.
type CacheConfig struct {
	// Prefix namespaces all keys of this cache in the shared store.
	Prefix string
	// DefaultTTL applies when Set or GetOrSet is called with ttl <= 0.
	DefaultTTL time.Duration
	// LockTTL bounds how long a crashed lock holder can block a key.
	// Default 10s.
	LockTTL time.Duration
	// PollInterval and WaitTimeout control how followers wait for the lock
	// holder's result. Defaults 100ms and 8s.
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.Prefix == "" {
		c.Prefix = "cache"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 8 * time.Second
	}
	return c
}

// RateLimitDecision is passed to the rate limiter's decision hook. Err is
// non-nil when the store failed and the limiter failed open.
type RateLimitDecision struct {
	Identifier string
	Tier       Tier
	Result     RateLimitResult
	Err        error
}

// RateLimitConfig controls the tiered rate limiter.
type RateLimitConfig struct {
	// FreeLimit requests per FreeWindow for unpaid callers. Defaults 10
	// per 24h.
	FreeLimit  int
	FreeWindow time.Duration
	// PaidLimit requests per PaidWindow per verified payment. Defaults 60
	// per minute.
	PaidLimit  int
	PaidWindow time.Duration
	// GraceTTL is added to the window when computing storage TTL so a
	// record outlives its window slightly. Default 1 hour.
	GraceTTL time.Duration
	// IPSalt salts free-tier IP hashes.
	IPSalt string
	// OnDecision, if set, observes every decision including fail-open ones.
	OnDecision func(RateLimitDecision)
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.FreeLimit <= 0 {
		c.FreeLimit = 10
	}
	if c.FreeWindow <= 0 {
		c.FreeWindow = 24 * time.Hour
	}
	if c.PaidLimit <= 0 {
		c.PaidLimit = 60
	}
	if c.PaidWindow <= 0 {
		c.PaidWindow = time.Minute
	}
	if c.GraceTTL <= 0 {
		c.GraceTTL = time.Hour
	}
	return c
}
