// Package vat computes value-added tax for invoice lines.
//
// Rates come from a per-country table. Whether tax is charged at all is
// decided by an ordered list of CEL rules evaluated against the seller and
// the customer; the first matching rule wins.
package vat

import (
	"github.com/shopspring/decimal"
)

// Category selects which rate of the country table applies.
type Category string

const (
	CategoryStandard Category = "standard"
	CategoryReduced  Category = "reduced"
	CategoryZero     Category = "zero"
	CategoryExempt   Category = "exempt"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryStandard, CategoryReduced, CategoryZero, CategoryExempt:
		return true
	}
	return false
}

// CountryRates holds the rates of one country, in percent.
type CountryRates struct {
	Country  string          `json:"country" mapstructure:"country"`
	Standard decimal.Decimal `json:"standard" mapstructure:"standard"`
	Reduced  decimal.Decimal `json:"reduced" mapstructure:"reduced"`
	EU       bool            `json:"eu" mapstructure:"eu"`
}

// Rate returns the percent rate of category.
func (r CountryRates) Rate(c Category) decimal.Decimal {
	switch c {
	case CategoryStandard:
		return r.Standard
	case CategoryReduced:
		return r.Reduced
	default:
		return decimal.Zero
	}
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultRates is the built-in rate table.
func DefaultRates() map[string]CountryRates {
	table := []CountryRates{
		{Country: "AT", Standard: pct("20"), Reduced: pct("10"), EU: true},
		{Country: "BE", Standard: pct("21"), Reduced: pct("6"), EU: true},
		{Country: "DE", Standard: pct("19"), Reduced: pct("7"), EU: true},
		{Country: "ES", Standard: pct("21"), Reduced: pct("10"), EU: true},
		{Country: "FR", Standard: pct("20"), Reduced: pct("5.5"), EU: true},
		{Country: "IE", Standard: pct("23"), Reduced: pct("13.5"), EU: true},
		{Country: "IT", Standard: pct("22"), Reduced: pct("10"), EU: true},
		{Country: "NL", Standard: pct("21"), Reduced: pct("9"), EU: true},
		{Country: "PL", Standard: pct("23"), Reduced: pct("8"), EU: true},
		{Country: "SE", Standard: pct("25"), Reduced: pct("12"), EU: true},
		{Country: "CH", Standard: pct("8.1"), Reduced: pct("2.6")},
		{Country: "GB", Standard: pct("20"), Reduced: pct("5")},
		{Country: "NO", Standard: pct("25"), Reduced: pct("15")},
		{Country: "US", Standard: pct("0"), Reduced: pct("0")},
	}

	rates := make(map[string]CountryRates, len(table))
	for _, r := range table {
		rates[r.Country] = r
	}
	return rates
}
