// Package types provides common value types.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept on stored amounts.
const MoneyScale int32 = 2

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to MoneyScale digits.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// Percent returns rate percent of amount, rounded to MoneyScale.
// Rate is expressed in percent, e.g. 21 for 21%.
func Percent(amount Money, rate decimal.Decimal) Money {
	return RoundMoney(amount.Mul(rate).Div(decimal.NewFromInt(100)))
}
