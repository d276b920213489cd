// Package core holds the domain model shared by the whole pipeline:
// payment records, periods, the unified dataset and amount parsing.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a raw amount cell to a decimal value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading currency symbol. Non-numeric or negative values return
// ErrInvalidAmount; the loader drops those rows instead of failing the run.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "S/")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
// Aggregates are rounded once at summary time and the rounded values feed
// every downstream growth and trend computation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
