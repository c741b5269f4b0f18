package chaingate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestChainRegistry_Lookups(t *testing.T) {
	payTo := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	reg := NewChainRegistry(DefaultChains(payTo)...)

	chain, ok := reg.ByName("Base")
	if !ok {
		t.Fatal("case-insensitive lookup failed")
	}
	if chain.ChainID != 8453 || chain.PayTo != payTo {
		t.Errorf("base = %+v", chain)
	}
	if chain.Network() != "eip155:8453" {
		t.Errorf("network = %q", chain.Network())
	}

	chain, ok = reg.ByID(1)
	if !ok || chain.Name != "ethereum" {
		t.Errorf("ByID(1) = %+v, %v", chain, ok)
	}
	if _, ok := reg.ByID(42); ok {
		t.Error("unknown chain ID resolved")
	}
	if _, ok := reg.ByName("solana"); ok {
		t.Error("unknown chain name resolved")
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "base" || names[1] != "ethereum" {
		t.Errorf("names = %v, want sorted [base ethereum]", names)
	}
}

func TestChainRegistry_TxURL(t *testing.T) {
	reg := NewChainRegistry(DefaultChains(common.Address{})...)

	const hash = "0x1111111111111111111111111111111111111111111111111111111111111111"
	if got, want := reg.TxURL("base", hash), "https://basescan.org/tx/"+hash; got != want {
		t.Errorf("TxURL = %q, want %q", got, want)
	}
	if got := reg.TxURL("solana", hash); got != "" {
		t.Errorf("TxURL for unknown chain = %q, want empty", got)
	}
}
