package utils

import "github.com/shopspring/decimal"

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// RoundCents rounds to two decimal places. Display only; lot
// consumption never rounds.
func RoundCents(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
