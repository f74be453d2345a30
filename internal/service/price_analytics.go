package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// PriceStats summarizes the recorded price series over a trailing window.
type PriceStats struct {
	Symbol    string          `json:"symbol"`
	Latest    decimal.Decimal `json:"latest"`
	Min       decimal.Decimal `json:"min"`
	Max       decimal.Decimal `json:"max"`
	Average   decimal.Decimal `json:"average"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
	// Volatility is the population standard deviation of the window.
	Volatility decimal.Decimal `json:"volatility"`
	// Support and Resistance are the low and high of the most recent
	// quarter of the window's samples.
	Support    decimal.Decimal `json:"support"`
	Resistance decimal.Decimal `json:"resistance"`
	Samples    int             `json:"samples"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
}

// Analytics computes price statistics over the trailing window. It returns
// domain.ErrNotFound when no samples fall inside the window.
func (s *PriceService) Analytics(ctx context.Context, window time.Duration) (PriceStats, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := s.now()
	pts, err := s.History(ctx, now.Add(-window))
	if err != nil {
		return PriceStats{}, fmt.Errorf("price_service: analytics: %w", err)
	}
	if len(pts) == 0 {
		return PriceStats{}, domain.ErrNotFound
	}

	first, last := pts[0], pts[len(pts)-1]
	min, max := first.Price, first.Price
	sum := decimal.Zero
	for _, p := range pts {
		if p.Price.LessThan(min) {
			min = p.Price
		}
		if p.Price.GreaterThan(max) {
			max = p.Price
		}
		sum = sum.Add(p.Price)
	}

	change := last.Price.Sub(first.Price)
	changePct := decimal.Zero
	if first.Price.IsPositive() {
		changePct = change.Div(first.Price).Mul(decimal.NewFromInt(100))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(pts))))

	variance := 0.0
	avgF, _ := avg.Float64()
	for _, p := range pts {
		f, _ := p.Price.Float64()
		d := f - avgF
		variance += d * d
	}
	volatility := decimal.NewFromFloat(math.Sqrt(variance / float64(len(pts))))

	// Support and resistance track the most recent quarter of the window
	// so old extremes age out of the levels.
	recent := pts[len(pts)-(len(pts)+3)/4:]
	support, resistance := recent[0].Price, recent[0].Price
	for _, p := range recent {
		if p.Price.LessThan(support) {
			support = p.Price
		}
		if p.Price.GreaterThan(resistance) {
			resistance = p.Price
		}
	}

	return PriceStats{
		Symbol:     Symbol,
		Latest:     last.Price,
		Min:        min,
		Max:        max,
		Average:    avg,
		Change:     change,
		ChangePct:  changePct,
		Volatility: volatility,
		Support:    support,
		Resistance: resistance,
		Samples:    len(pts),
		From:       first.Timestamp,
		To:         last.Timestamp,
	}, nil
}
