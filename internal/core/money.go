package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places deposits are kept at.
const AmountPlaces = 2

// ParseAmount converts user input into a non-negative amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. The value
// is rounded half-up to two places. Grouping separators are not supported.
//
//	ParseAmount("12,5")   -> 12.50
//	ParseAmount("0")      -> 0
//	ParseAmount("1.005")  -> 1.01
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return NormalizeAmount(d)
}

// NormalizeAmount rejects negative values and rounds to AmountPlaces.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(AmountPlaces), nil
}

// SumAmounts adds up the amount of every deposit.
func SumAmounts(deposits []Deposit) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(d.Amount)
	}
	return total
}
