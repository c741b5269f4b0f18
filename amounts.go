package chaingate

import (
	"math/big"
	"strconv"
	"strings"
)

// usdToMinorUnits converts a USD amount to the token's fixed-point minor
// units through string decimal formatting. Multiplying the float by 10^n
// directly loses precision for very small per-call prices (and produces
// scientific notation in the original's runtime); formatting to a fixed
// number of decimal places first avoids both.
func usdToMinorUnits(amount float64, decimals int) (*big.Int, error) {
	if amount < 0 || decimals < 0 {
		return nil, NewGateError(ErrCodeInvalidAmount, "amount and decimals must be non-negative", nil)
	}
	s := strconv.FormatFloat(amount, 'f', decimals, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")
	n, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, NewGateError(ErrCodeInvalidAmount, "unparseable amount: "+s, nil)
	}
	return n, nil
}

// formatMinorUnits renders minor units as a decimal token amount with
// trailing zeros trimmed, e.g. 285 with 6 decimals -> "0.000285".
func formatMinorUnits(units *big.Int, decimals int) string {
	s := units.String()
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return intPart
	}
	return intPart + "." + frac
}
