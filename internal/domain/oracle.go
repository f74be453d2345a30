package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceOracle returns the current exchange rate of the synthetic asset in
// collateral-currency units. Implementations must return a positive price or
// an error; the ledger engine collapses any failure to its fallback price
// and never surfaces oracle errors to callers.
type PriceOracle interface {
	GetPrice(ctx context.Context) (decimal.Decimal, error)
}

// PriceOracleFunc adapts a function to the PriceOracle interface.
type PriceOracleFunc func(ctx context.Context) (decimal.Decimal, error)

// GetPrice implements PriceOracle.
func (f PriceOracleFunc) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	return f(ctx)
}
