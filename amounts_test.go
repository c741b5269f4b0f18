package chaingate

import (
	"math/big"
	"testing"
)

func TestUsdToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   float64
		decimals int
		want     string
	}{
		{0.0003, 6, "300"},
		{0.001, 6, "1000"},
		{0.01, 6, "10000"},
		{1, 6, "1000000"},
		{1000000, 6, "1000000000000"},
		{0.0000001, 6, "0"}, // below one minor unit rounds away
		{5, 0, "5"},
		{0.5, 2, "50"},
	}

	for _, tt := range tests {
		got, err := usdToMinorUnits(tt.amount, tt.decimals)
		if err != nil {
			t.Errorf("usdToMinorUnits(%g, %d) error: %v", tt.amount, tt.decimals, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("usdToMinorUnits(%g, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestUsdToMinorUnits_Negative(t *testing.T) {
	if _, err := usdToMinorUnits(-1, 6); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestFormatMinorUnits(t *testing.T) {
	tests := []struct {
		units    int64
		decimals int
		want     string
	}{
		{285, 6, "0.000285"},
		{310, 6, "0.00031"},
		{1000000, 6, "1"},
		{1500000, 6, "1.5"},
		{0, 6, "0"},
		{42, 0, "42"},
	}

	for _, tt := range tests {
		got := formatMinorUnits(big.NewInt(tt.units), tt.decimals)
		if got != tt.want {
			t.Errorf("formatMinorUnits(%d, %d) = %q, want %q", tt.units, tt.decimals, got, tt.want)
		}
	}
}
