package chaingate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainConfig is the static configuration for one supported network:
// where to read transactions from, who must be paid, and in what token.
type ChainConfig struct {
	Name          string
	ChainID       int64
	RPCURL        string
	PayTo         common.Address
	Token         common.Address
	TokenSymbol   string
	TokenDecimals int
	BlockExplorer string
}

// Network returns the CAIP-2 identifier for the chain (e.g. "eip155:8453").
func (c ChainConfig) Network() string {
	return fmt.Sprintf("eip155:%d", c.ChainID)
}

// ChainRegistry maps chain names to their static configuration. The
// registry is immutable after construction and safe for concurrent use.
type ChainRegistry struct {
	chains map[string]ChainConfig
}

// NewChainRegistry builds a registry from the given chain configurations.
// Names are matched case-insensitively.
func NewChainRegistry(chains ...ChainConfig) *ChainRegistry {
	m := make(map[string]ChainConfig, len(chains))
	for _, c := range chains {
		m[strings.ToLower(c.Name)] = c
	}
	return &ChainRegistry{chains: m}
}

// ByName looks up a chain by name.
func (r *ChainRegistry) ByName(name string) (ChainConfig, bool) {
	c, ok := r.chains[strings.ToLower(name)]
	return c, ok
}

// ByID looks up a chain by numeric chain ID.
func (r *ChainRegistry) ByID(id int64) (ChainConfig, bool) {
	for _, c := range r.chains {
		if c.ChainID == id {
			return c, true
		}
	}
	return ChainConfig{}, false
}

// Names returns the supported chain names, sorted.
func (r *ChainRegistry) Names() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every configured chain, ordered by name.
func (r *ChainRegistry) All() []ChainConfig {
	chains := make([]ChainConfig, 0, len(r.chains))
	for _, name := range r.Names() {
		chains = append(chains, r.chains[name])
	}
	return chains
}

// TxURL returns the block-explorer URL for a transaction, or "" if the
// chain is unknown or has no explorer configured.
func (r *ChainRegistry) TxURL(chain, txHash string) string {
	c, ok := r.ByName(chain)
	if !ok || c.BlockExplorer == "" {
		return ""
	}
	return c.BlockExplorer + "/tx/" + txHash
}

// USDC contract addresses on the default chains. USDC uses 6 decimals.
var (
	usdcEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	usdcBase     = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

// DefaultChains returns configurations for Ethereum mainnet and Base with
// USDC as the payment token and payTo as the expected recipient on both.
// RPC URLs are public defaults; override them for production use.
func DefaultChains(payTo common.Address) []ChainConfig {
	return []ChainConfig{
		{
			Name:          "ethereum",
			ChainID:       1,
			RPCURL:        "https://eth.llamarpc.com",
			PayTo:         payTo,
			Token:         usdcEthereum,
			TokenSymbol:   "USDC",
			TokenDecimals: 6,
			BlockExplorer: "https://etherscan.io",
		},
		{
			Name:          "base",
			ChainID:       8453,
			RPCURL:        "https://mainnet.base.org",
			PayTo:         payTo,
			Token:         usdcBase,
			TokenSymbol:   "USDC",
			TokenDecimals: 6,
			BlockExplorer: "https://basescan.org",
		},
	}
}
