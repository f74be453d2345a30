package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/domain"
	"github.com/goldchainlabs/goldbot/internal/store/memory"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixedOracle struct {
	price decimal.Decimal
	err   error
}

func (o *fixedOracle) GetPrice(context.Context) (decimal.Decimal, error) {
	return o.price, o.err
}

type failingStore struct {
	domain.LedgerStore
}

func (s *failingStore) Save(context.Context, string, domain.Ledger) error {
	return errors.New("disk on fire")
}

func newTestEngine(t *testing.T) (*Engine, *memory.LedgerStore, *fixedOracle, *fakeClock) {
	t.Helper()

	store := memory.NewLedgerStore()
	oracle := &fixedOracle{price: decimal.NewFromFloat(0.05)}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	cfg := DefaultConfig()
	cfg.LockWait = 100 * time.Millisecond

	eng := NewEngine(store, oracle, NewKeyMutex(), cfg, slog.New(slog.DiscardHandler))
	eng.WithClock(clock.now)
	return eng, store, oracle, clock
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)),
		"want %s, got %s", want, got)
}

func TestBuyAsset(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	view, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(200))
	require.NoError(t, err)
	requireDecimal(t, "90", view.CollateralBalance)
	requireDecimal(t, "200", view.AssetBalance)

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, l.Transactions, 1)
	tx := l.Transactions[0]
	assert.Equal(t, domain.TxKindBuy, tx.Kind)
	assert.Equal(t, domain.TxStatusCompleted, tx.Status)
	requireDecimal(t, "200", tx.AssetAmount)
	requireDecimal(t, "10", tx.CollateralAmount)
}

func TestBuySellRoundTrip(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(40))
	require.NoError(t, err)

	view, err := eng.SellAsset(ctx, "alice", decimal.NewFromInt(40))
	require.NoError(t, err)
	requireDecimal(t, "100", view.CollateralBalance)
	requireDecimal(t, "0", view.AssetBalance)

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, l.Transactions, 2)
	assert.Equal(t, domain.TxKindSell, l.Transactions[0].Kind)
	assert.Equal(t, domain.TxKindBuy, l.Transactions[1].Kind)
}

func TestBuyInsufficientFundsLeavesLedgerUntouched(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Seed 100 collateral buys at most 2000 units at 0.05.
	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(2001))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Nothing was persisted for the user, not even the seed.
	_, err = store.Load(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrNotFound)

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, "100", l.CollateralBalance)
	assert.Empty(t, l.Transactions)
}

func TestSellInsufficientAsset(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.SellAsset(ctx, "alice", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrInsufficientAsset)
}

func TestInvalidAmounts(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := eng.BuyAsset(ctx, "alice", amount)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = eng.SellAsset(ctx, "alice", amount)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = eng.OpenLend(ctx, "alice", amount, 30)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = eng.OpenBorrow(ctx, "alice", amount, 30)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
}

func TestOracleFailureFallsBackToDefaultPrice(t *testing.T) {
	eng, _, oracle, _ := newTestEngine(t)
	ctx := context.Background()
	oracle.err = errors.New("oracle down")

	view, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)
	// 100 units at the 0.05 fallback cost 5 collateral.
	requireDecimal(t, "95", view.CollateralBalance)
	requireDecimal(t, "0.05", view.Price)
}

func TestNonPositiveOraclePriceFallsBack(t *testing.T) {
	eng, _, oracle, _ := newTestEngine(t)
	ctx := context.Background()
	oracle.price = decimal.Zero

	requireDecimal(t, "0.05", eng.CurrentPrice(ctx))
}

func TestLendLifecycle(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(200))
	require.NoError(t, err)

	pos, err := eng.OpenLend(ctx, "alice", decimal.NewFromInt(50), 30)
	require.NoError(t, err)
	requireDecimal(t, "0.04", pos.InterestRate)
	assert.Equal(t, domain.LendStatusActive, pos.Status)
	assert.Equal(t, clock.t.Add(30*24*time.Hour), pos.MaturesAt)

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, "150", l.AssetBalance)

	// Too early by one hour.
	clock.advance(30*24*time.Hour - time.Hour)
	_, err = eng.ClaimLend(ctx, "alice", pos.ID)
	require.ErrorIs(t, err, domain.ErrNotMatured)

	// Exactly at maturity the claim succeeds.
	clock.advance(time.Hour)
	res, err := eng.ClaimLend(ctx, "alice", pos.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LendStatusCompleted, res.Position.Status)

	principal := decimal.NewFromInt(50)
	term := decimal.NewFromInt(30).Div(decimal.NewFromInt(365))
	wantInterest := principal.Mul(decimal.RequireFromString("0.04")).Mul(term)
	require.True(t, res.Interest.Equal(wantInterest), "interest %s", res.Interest)
	require.True(t, res.Payout.Equal(principal.Add(wantInterest)), "payout %s", res.Payout)

	l, err = eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.True(t, l.AssetBalance.Equal(decimal.NewFromInt(150).Add(principal.Add(wantInterest))))
}

func TestClaimTwiceFails(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)
	pos, err := eng.OpenLend(ctx, "alice", decimal.NewFromInt(10), 7)
	require.NoError(t, err)

	clock.advance(8 * 24 * time.Hour)
	_, err = eng.ClaimLend(ctx, "alice", pos.ID)
	require.NoError(t, err)

	_, err = eng.ClaimLend(ctx, "alice", pos.ID)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestClaimUnknownPosition(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	_, err := eng.ClaimLend(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestLendRateTiers(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	cases := []struct {
		termDays int
		rate     string
	}{
		{0, "0.04"}, // no matching tier resolves to the shortest
		{7, "0.04"},
		{30, "0.04"},
		{31, "0.055"},
		{90, "0.055"},
		{91, "0.07"},
		{365, "0.07"},
		{1000, "0.07"}, // beyond the longest tier keeps its rate
	}
	for _, tc := range cases {
		pos, err := eng.OpenLend(ctx, "alice", decimal.NewFromInt(1), tc.termDays)
		require.NoError(t, err, "term %d", tc.termDays)
		requireDecimal(t, tc.rate, pos.InterestRate)
	}
}

func TestBorrowRepayScenario(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Fresh user, seed 100 collateral, price 0.05.
	view, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(200))
	require.NoError(t, err)
	requireDecimal(t, "90", view.CollateralBalance)
	requireDecimal(t, "200", view.AssetBalance)

	// Borrow 50 for 30 days: lock 50 * 0.05 * 1.5 = 3.75 collateral.
	pos, err := eng.OpenBorrow(ctx, "alice", decimal.NewFromInt(50), 30)
	require.NoError(t, err)
	requireDecimal(t, "3.75", pos.CollateralLocked)
	requireDecimal(t, "0.06", pos.InterestRate)
	assert.Equal(t, domain.BorrowStatusActive, pos.Status)

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, "86.25", l.CollateralBalance)
	requireDecimal(t, "250", l.AssetBalance)

	// Repay flat 50 * 1.06 = 53 and release the full lock.
	res, err := eng.RepayBorrow(ctx, "alice", pos.ID)
	require.NoError(t, err)
	requireDecimal(t, "53", res.Repayment)
	requireDecimal(t, "3.75", res.CollateralReleased)
	assert.Equal(t, domain.BorrowStatusRepaid, res.Position.Status)

	l, err = eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, "90", l.CollateralBalance)
	requireDecimal(t, "197", l.AssetBalance)
}

func TestBorrowInsufficientCollateral(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	// 2000 * 0.05 * 1.5 = 150 > 100 seed.
	_, err := eng.OpenBorrow(ctx, "alice", decimal.NewFromInt(2000), 30)
	require.ErrorIs(t, err, domain.ErrInsufficientCollateral)

	_, err = store.Load(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepayInsufficientAsset(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	pos, err := eng.OpenBorrow(ctx, "alice", decimal.NewFromInt(50), 30)
	require.NoError(t, err)

	// Spend the borrowed assets so the 53 repayment cannot be covered.
	_, err = eng.SellAsset(ctx, "alice", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = eng.RepayBorrow(ctx, "alice", pos.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientAsset)

	// Position stays active and balances are unchanged by the failure.
	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	i, ok := l.ActiveBorrow(pos.ID)
	require.True(t, ok)
	assert.Equal(t, domain.BorrowStatusActive, l.BorrowPositions[i].Status)
	requireDecimal(t, "40", l.AssetBalance)
}

func TestRepayTwiceFails(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)
	pos, err := eng.OpenBorrow(ctx, "alice", decimal.NewFromInt(10), 30)
	require.NoError(t, err)

	_, err = eng.RepayBorrow(ctx, "alice", pos.ID)
	require.NoError(t, err)
	_, err = eng.RepayBorrow(ctx, "alice", pos.ID)
	require.ErrorIs(t, err, domain.ErrPositionNotFound)
}

func TestSnapshotValuation(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(200))
	require.NoError(t, err)

	snap, err := eng.Snapshot(ctx, "alice")
	require.NoError(t, err)
	requireDecimal(t, "90", snap.CollateralValue)
	requireDecimal(t, "10", snap.AssetValue)
	requireDecimal(t, "100", snap.TotalValue)
}

func TestSnapshotHistoryCap(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	var timestamps []time.Time
	for i := 0; i < 150; i++ {
		clock.advance(time.Minute)
		timestamps = append(timestamps, clock.t)
		_, err := eng.Snapshot(ctx, "alice")
		require.NoError(t, err)
	}

	l, err := eng.Portfolio(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, l.History, domain.SnapshotHistoryCap)
	// The 50 oldest samples were evicted; order is preserved.
	assert.Equal(t, timestamps[50], l.History[0].Timestamp)
	assert.Equal(t, timestamps[149], l.History[len(l.History)-1].Timestamp)
}

func TestPersistenceFailureSurfacedAndDiscarded(t *testing.T) {
	store := memory.NewLedgerStore()
	oracle := &fixedOracle{price: decimal.NewFromFloat(0.05)}
	cfg := DefaultConfig()
	cfg.LockWait = 100 * time.Millisecond
	eng := NewEngine(&failingStore{LedgerStore: store}, oracle, NewKeyMutex(), cfg, slog.New(slog.DiscardHandler))

	_, err := eng.BuyAsset(context.Background(), "alice", decimal.NewFromInt(10))
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = store.Load(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedgerBusyWhenLockHeld(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	locks := NewKeyMutex()
	eng.locks = locks
	unlock, err := locks.Acquire(ctx, "ledger:alice", time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = eng.BuyAsset(ctx, "alice", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrLedgerBusy)

	// Other users are unaffected.
	_, err = eng.BuyAsset(ctx, "bob", decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestTransactionsPagination(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(1))
		require.NoError(t, err)
	}

	txs, err := eng.Transactions(ctx, "alice", domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	txs, err = eng.Transactions(ctx, "alice", domain.ListOpts{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	txs, err = eng.Transactions(ctx, "alice", domain.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestHistoryWindow(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Snapshot(ctx, "alice")
	require.NoError(t, err)

	clock.advance(40 * 24 * time.Hour)
	_, err = eng.Snapshot(ctx, "alice")
	require.NoError(t, err)

	recent, err := eng.History(ctx, "alice", 30)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	all, err := eng.History(ctx, "alice", 90)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestFrozenRateSurvivesConfigChange(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.BuyAsset(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)
	pos, err := eng.OpenLend(ctx, "alice", decimal.NewFromInt(10), 30)
	require.NoError(t, err)

	// Reconfigure the tiers after origination; the open position keeps its
	// original rate.
	eng.cfg.LendRates = domain.RateTable{}

	clock.advance(31 * 24 * time.Hour)
	res, err := eng.ClaimLend(ctx, "alice", pos.ID)
	require.NoError(t, err)
	requireDecimal(t, "0.04", res.Position.InterestRate)
}
