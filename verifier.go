package chaingate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// transferTopic is topic0 of the standard ERC-20 Transfer(address,address,uint256) event.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ChainBackend is the read-only view of a chain the verifier needs.
// *ethclient.Client satisfies it.
type ChainBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
}

var _ ChainBackend = (*ethclient.Client)(nil)

// DialChains connects an RPC client for every chain in the registry,
// keyed by chain name.
func DialChains(reg *ChainRegistry) (map[string]ChainBackend, error) {
	backends := make(map[string]ChainBackend)
	for _, chain := range reg.All() {
		client, err := ethclient.Dial(chain.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial %s rpc: %w", chain.Name, err)
		}
		backends[strings.ToLower(chain.Name)] = client
	}
	return backends, nil
}

// Verifier confirms that client-supplied payment proofs reference real,
// successful token transfers of sufficient value to the expected
// recipient. The chain is the ground truth: nothing claimed in the proof
// is trusted, only the transaction receipt's Transfer log.
//
// The verifier never fails open. An unverifiable payment must never be
// silently admitted, so RPC and store trouble surface as verification
// failure, not as success.
type Verifier struct {
	chains   *ChainRegistry
	backends map[string]ChainBackend
	cache    *Cache[VerificationResult]
	cfg      VerifierConfig
}

// NewVerifier creates a verifier reading chain state through the given
// backends (keyed by lowercase chain name) and caching results in store.
func NewVerifier(chains *ChainRegistry, backends map[string]ChainBackend, store Store, cfg VerifierConfig) *Verifier {
	cfg = cfg.withDefaults()
	return &Verifier{
		chains:   chains,
		backends: backends,
		cache: NewCache[VerificationResult](store, CacheConfig{
			Prefix:     "cache:verification",
			DefaultTTL: cfg.CacheTTL,
		}),
		cfg: cfg,
	}
}

func invalidResult(txHash, reason string) VerificationResult {
	return VerificationResult{Valid: false, TxHash: txHash, Error: reason}
}

// Verify decodes proofHeader and confirms on-chain that it paid at least
// expectedUSD (within the configured tolerance) to the expected recipient
// in the expected token. All expected failure modes come back as tagged
// results; Verify never returns a Go error to the request path.
func (v *Verifier) Verify(ctx context.Context, proofHeader string, expectedUSD float64, endpoint string) VerificationResult {
	proof, ok := DecodeProof(proofHeader, v.cfg.DefaultChain)
	if !ok {
		return invalidResult("", "malformed payment proof")
	}

	if expectedUSD <= 0 || expectedUSD > 1_000_000 {
		return invalidResult(proof.TxHash,
			fmt.Sprintf("invalid expected amount: %g (must be between 0 and 1,000,000 USD)", expectedUSD))
	}

	cacheKey := proof.TxHash + ":" + strconv.FormatFloat(expectedUSD, 'f', 6, 64)
	if cached, ok := v.cache.Get(ctx, cacheKey); ok {
		return cached
	}

	chain, ok := v.chains.ByName(proof.Chain)
	if !ok {
		return invalidResult(proof.TxHash, "unsupported chain: "+proof.Chain)
	}
	backend, ok := v.backends[strings.ToLower(proof.Chain)]
	if !ok {
		return invalidResult(proof.TxHash, "no rpc client configured for chain: "+proof.Chain)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, v.cfg.RPCTimeout)
	defer cancel()

	txHash := common.HexToHash(proof.TxHash)
	receipt, err := backend.TransactionReceipt(rpcCtx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return invalidResult(proof.TxHash, "transaction not found")
		}
		return invalidResult(proof.TxHash, "verification failed: "+err.Error())
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return invalidResult(proof.TxHash, "transaction failed")
	}

	tx, _, err := backend.TransactionByHash(rpcCtx, txHash)
	if err != nil {
		return invalidResult(proof.TxHash, "verification failed: "+err.Error())
	}
	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(big.NewInt(chain.ChainID)), tx)
	if err != nil {
		return invalidResult(proof.TxHash, "verification failed: cannot recover sender: "+err.Error())
	}

	transferred := findTransfer(receipt, chain.Token, chain.PayTo)
	if transferred == nil {
		return invalidResult(proof.TxHash,
			fmt.Sprintf("no valid %s transfer to %s found in transaction", chain.TokenSymbol, chain.PayTo.Hex()))
	}

	expected, err := usdToMinorUnits(expectedUSD, chain.TokenDecimals)
	if err != nil {
		return invalidResult(proof.TxHash, "verification failed: "+err.Error())
	}

	// minAcceptable = expected - expected*tolerance/100, all in integer
	// minor units. Subtraction, not multiplication by 0.95, so there is
	// no overflow and no float involved.
	tolerance := new(big.Int).Div(new(big.Int).Mul(expected, big.NewInt(v.cfg.TolerancePercent)), big.NewInt(100))
	minAcceptable := new(big.Int).Sub(expected, tolerance)

	if transferred.Cmp(minAcceptable) < 0 {
		return invalidResult(proof.TxHash, fmt.Sprintf(
			"Insufficient payment: sent %s %s, expected at least %s %s",
			formatMinorUnits(transferred, chain.TokenDecimals), chain.TokenSymbol,
			formatMinorUnits(minAcceptable, chain.TokenDecimals), chain.TokenSymbol))
	}

	result := VerificationResult{
		Valid:      true,
		TxHash:     proof.TxHash,
		Payer:      sender.Hex(),
		AmountPaid: transferred.String(),
	}
	// Confirmation state is final; the TTL only bounds store growth.
	v.cache.Set(ctx, cacheKey, result, v.cfg.CacheTTL)
	return result
}

// findTransfer scans receipt logs for a Transfer event emitted by the
// expected token contract whose recipient topic is the expected payment
// address, returning the transferred amount in minor units.
func findTransfer(receipt *ethtypes.Receipt, token, payTo common.Address) *big.Int {
	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 3 || lg.Topics[0] != transferTopic {
			continue
		}
		if lg.Address != token {
			continue
		}
		recipient := common.BytesToAddress(lg.Topics[2].Bytes())
		if recipient != payTo {
			continue
		}
		return new(big.Int).SetBytes(lg.Data)
	}
	return nil
}
