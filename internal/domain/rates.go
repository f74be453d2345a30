package domain

import "github.com/shopspring/decimal"

// RateTier maps the upper bound of a term range (in days) to the simple
// annual interest rate charged or paid for terms in that range.
type RateTier struct {
	MaxTermDays int             `json:"max_term_days"`
	Rate        decimal.Decimal `json:"rate"`
}

// RateTable is an ordered set of tiers, shortest term first. Resolution is an
// explicit lookup with a defined default: degenerate terms take the shortest
// tier and terms beyond the longest tier take the last tier. A term is never
// rejected for being unrecognized.
type RateTable struct {
	Tiers []RateTier
}

// Resolve returns the rate for the given term length in days.
func (t RateTable) Resolve(termDays int) decimal.Decimal {
	if len(t.Tiers) == 0 {
		return decimal.Zero
	}
	if termDays <= 0 {
		return t.Tiers[0].Rate
	}
	for _, tier := range t.Tiers {
		if termDays <= tier.MaxTermDays {
			return tier.Rate
		}
	}
	return t.Tiers[len(t.Tiers)-1].Rate
}

// DefaultLendRates are the lend tiers used by the original product:
// 4% up to 30 days, 5.5% up to 90 days, 7% beyond.
func DefaultLendRates() RateTable {
	return RateTable{Tiers: []RateTier{
		{MaxTermDays: 30, Rate: decimal.NewFromFloat(0.04)},
		{MaxTermDays: 90, Rate: decimal.NewFromFloat(0.055)},
		{MaxTermDays: 365, Rate: decimal.NewFromFloat(0.07)},
	}}
}

// DefaultBorrowRates are the borrow tiers used by the original product:
// 6% up to 30 days, 7.5% up to 90 days, 9% beyond.
func DefaultBorrowRates() RateTable {
	return RateTable{Tiers: []RateTier{
		{MaxTermDays: 30, Rate: decimal.NewFromFloat(0.06)},
		{MaxTermDays: 90, Rate: decimal.NewFromFloat(0.075)},
		{MaxTermDays: 365, Rate: decimal.NewFromFloat(0.09)},
	}}
}
