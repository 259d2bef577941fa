package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func ParseHexUint64(h string) (uint64, error) {
	h = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "0x")
	if h == "" {
		return 0, fmt.Errorf("empty hex")
	}
	return strconv.ParseUint(h, 16, 64)
}

// ToUnits converts a raw integer amount into display units.
func ToUnits(raw string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d.Shift(-decimals), nil
}

// FromUnits converts a display amount (e.g. 0.5 BTC) into a raw integer string.
func FromUnits(display decimal.Decimal, decimals int32) string {
	return display.Shift(decimals).Truncate(0).String()
}
