package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/domain"
	"github.com/goldchainlabs/goldbot/internal/store/memory"
)

type countingOracle struct {
	mu    sync.Mutex
	price decimal.Decimal
	err   error
	calls int
}

func (o *countingOracle) GetPrice(context.Context) (decimal.Decimal, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.price, o.err
}

func (o *countingOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type mapPriceCache struct {
	mu     sync.Mutex
	prices map[string]domain.PricePoint
}

func newMapPriceCache() *mapPriceCache {
	return &mapPriceCache{prices: map[string]domain.PricePoint{}}
}

func (c *mapPriceCache) SetPrice(_ context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = domain.PricePoint{Timestamp: ts, Price: price}
	return nil
}

func (c *mapPriceCache) GetPrice(_ context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return p.Price, p.Timestamp, nil
}

func newTestPriceService(t *testing.T) (*PriceService, *countingOracle, *memory.PriceHistoryStore, *time.Time) {
	t.Helper()

	upstream := &countingOracle{price: decimal.NewFromFloat(0.051)}
	history := memory.NewPriceHistoryStore()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	svc := NewPriceService(upstream, newMapPriceCache(), history, nil, time.Minute, slog.New(slog.DiscardHandler))
	svc.WithClock(func() time.Time { return now })
	return svc, upstream, history, &now
}

func TestGetPriceCachesUpstream(t *testing.T) {
	svc, upstream, history, now := newTestPriceService(t)
	ctx := context.Background()

	price, err := svc.GetPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.051", price.String())
	assert.Equal(t, 1, upstream.callCount())

	// Within the staleness budget the cache answers.
	*now = now.Add(30 * time.Second)
	_, err = svc.GetPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.callCount())

	// Past it the upstream is consulted again.
	*now = now.Add(2 * time.Minute)
	_, err = svc.GetPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.callCount())

	// Each refresh leaves a history point.
	pts, err := history.ListSince(ctx, Symbol, time.Time{})
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestGetPricePropagatesUpstreamFailure(t *testing.T) {
	svc, upstream, _, _ := newTestPriceService(t)
	upstream.err = errors.New("oracle down")

	_, err := svc.GetPrice(context.Background())
	require.Error(t, err)
}

func TestAnalytics(t *testing.T) {
	svc, _, history, now := newTestPriceService(t)
	ctx := context.Background()

	base := *now
	for i, raw := range []string{"0.05", "0.06", "0.04", "0.055"} {
		require.NoError(t, history.Append(ctx, Symbol, domain.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     decimal.RequireFromString(raw),
		}))
	}
	*now = base.Add(4 * time.Hour)

	stats, err := svc.Analytics(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Samples)
	assert.Equal(t, "0.055", stats.Latest.String())
	assert.Equal(t, "0.04", stats.Min.String())
	assert.Equal(t, "0.06", stats.Max.String())
	assert.True(t, stats.Change.Equal(decimal.RequireFromString("0.005")), "change %s", stats.Change)
	assert.True(t, stats.ChangePct.Equal(decimal.RequireFromString("10")), "pct %s", stats.ChangePct)

	// Levels come from the newest quarter of samples, here just the last one.
	assert.Equal(t, "0.055", stats.Support.String())
	assert.Equal(t, "0.055", stats.Resistance.String())

	vol, _ := stats.Volatility.Float64()
	assert.InDelta(t, 0.007395, vol, 1e-5)
}

func TestAnalyticsEmptyWindow(t *testing.T) {
	svc, _, _, _ := newTestPriceService(t)

	_, err := svc.Analytics(context.Background(), time.Hour)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

type stubSnapshotter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubSnapshotter) Snapshot(_ context.Context, userID string) (domain.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	return domain.PortfolioSnapshot{}, s.err
}

func TestSnapshotWorkerSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	require.NoError(t, store.Save(ctx, "alice", domain.NewLedger("alice", decimal.NewFromInt(100))))
	require.NoError(t, store.Save(ctx, "bob", domain.NewLedger("bob", decimal.NewFromInt(100))))

	snap := &stubSnapshotter{}
	w := NewSnapshotWorker(snap, store, time.Hour, slog.New(slog.DiscardHandler))
	w.sweep(ctx)

	assert.ElementsMatch(t, []string{"alice", "bob"}, snap.calls)
}

func TestSnapshotWorkerSweepContinuesOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	require.NoError(t, store.Save(ctx, "alice", domain.NewLedger("alice", decimal.NewFromInt(100))))
	require.NoError(t, store.Save(ctx, "bob", domain.NewLedger("bob", decimal.NewFromInt(100))))

	snap := &stubSnapshotter{err: errors.New("busy")}
	w := NewSnapshotWorker(snap, store, time.Hour, slog.New(slog.DiscardHandler))
	w.sweep(ctx)

	assert.Len(t, snap.calls, 2)
}
