package utxo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TBC amounts have six decimal places.
const (
	Decimals      = 6
	SatoshiPerTBC = 1_000_000
)

// ParseTBC converts a decimal TBC string to satoshis. Digits beyond the
// sixth decimal place are dropped.
func ParseTBC(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if strings.ContainsAny(whole, "+-") || strings.ContainsAny(frac, "+-") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if len(frac) > Decimals {
		frac = frac[:Decimals]
	}
	frac += strings.Repeat("0", Decimals-len(frac))
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if w > (math.MaxUint64-f)/SatoshiPerTBC {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return w*SatoshiPerTBC + f, nil
}

// FormatTBC renders satoshis as a decimal TBC string.
func FormatTBC(sats uint64) string {
	s := fmt.Sprintf("%d.%06d", sats/SatoshiPerTBC, sats%SatoshiPerTBC)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
