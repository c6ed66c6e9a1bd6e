package ton

import (
	"fmt"
	"math/big"
	"strings"
)

// ToNano converts a decimal amount string (e.g. "5.5") into base units for
// an asset with the given number of decimals. Excess fractional digits are
// truncated.
func ToNano(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if decimals < 0 {
		return nil, fmt.Errorf("negative decimals %d", decimals)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}

	nano, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return nano, nil
}

// FromNano renders base units as a decimal string, trimming trailing
// fractional zeros.
func FromNano(nano *big.Int, decimals int) string {
	if nano == nil {
		return "0"
	}
	s := nano.String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	for len(s) <= decimals {
		s = "0" + s
	}

	whole := s[:len(s)-decimals]
	frac := strings.TrimRight(s[len(s)-decimals:], "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// MulBPS returns n × bps / 10000, rounding down.
func MulBPS(n *big.Int, bps int) *big.Int {
	out := new(big.Int).Mul(n, big.NewInt(int64(bps)))
	return out.Quo(out, big.NewInt(10000))
}
