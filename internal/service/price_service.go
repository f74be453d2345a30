// Package service holds the application services that sit between the
// transport layers (HTTP, Telegram, WebSocket) and the stores, caches, and
// the ledger engine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// Symbol is the single tracked asset pair.
const Symbol = "vgold"

var _ domain.PriceOracle = (*PriceService)(nil)

// PriceService fronts the upstream price oracle with a cache and a history
// store. It satisfies domain.PriceOracle itself, so the ledger engine reads
// prices through it without knowing about caching.
type PriceService struct {
	upstream domain.PriceOracle
	cache    domain.PriceCache
	history  domain.PriceHistoryStore
	bus      domain.SignalBus
	maxStale time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPriceService creates a PriceService. maxStale bounds how old a cached
// price may be before GetPrice goes back to the upstream oracle.
func NewPriceService(
	upstream domain.PriceOracle,
	cache domain.PriceCache,
	history domain.PriceHistoryStore,
	bus domain.SignalBus,
	maxStale time.Duration,
	logger *slog.Logger,
) *PriceService {
	if maxStale <= 0 {
		maxStale = time.Minute
	}
	return &PriceService{
		upstream: upstream,
		cache:    cache,
		history:  history,
		bus:      bus,
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "price_service")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service's time source.
func (s *PriceService) WithClock(now func() time.Time) *PriceService {
	s.now = now
	return s
}

// GetPrice returns the cached price when fresh enough, otherwise refreshes
// from the upstream oracle. Upstream failures propagate so the caller's
// fallback policy applies.
func (s *PriceService) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	if s.cache != nil {
		price, ts, err := s.cache.GetPrice(ctx, Symbol)
		if err == nil && s.now().Sub(ts) <= s.maxStale {
			return price, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "price cache read failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return s.Refresh(ctx)
}

// Refresh fetches the price from the upstream oracle, records it in the
// cache and the history store, and publishes a price event. Cache and
// history write failures are logged but do not fail the refresh.
func (s *PriceService) Refresh(ctx context.Context) (decimal.Decimal, error) {
	price, err := s.upstream.GetPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price_service: refresh: %w", err)
	}
	ts := s.now()

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, Symbol, price, ts); err != nil {
			s.logger.WarnContext(ctx, "price cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.history != nil {
		if err := s.history.Append(ctx, Symbol, domain.PricePoint{Timestamp: ts, Price: price}); err != nil {
			s.logger.WarnContext(ctx, "price history append failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "price_update",
			"symbol":    Symbol,
			"price":     price,
			"timestamp": ts.Format(time.RFC3339Nano),
		})
		if pubErr := s.bus.Publish(ctx, "prices", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "publish price update failed",
				slog.String("error", pubErr.Error()),
			)
		}
	}

	return price, nil
}

// History returns recorded price points at or after since, oldest first.
func (s *PriceService) History(ctx context.Context, since time.Time) ([]domain.PricePoint, error) {
	if s.history == nil {
		return nil, nil
	}
	pts, err := s.history.ListSince(ctx, Symbol, since)
	if err != nil {
		return nil, fmt.Errorf("price_service: list history: %w", err)
	}
	return pts, nil
}

// RunRefreshLoop refreshes the price on the given interval until the context
// is cancelled. Individual refresh failures are logged and retried on the
// next tick.
func (s *PriceService) RunRefreshLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "price refresh loop started",
		slog.Duration("interval", interval),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.WarnContext(ctx, "scheduled price refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
