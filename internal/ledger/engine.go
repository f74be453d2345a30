// Package ledger implements the position/ledger bookkeeping engine: simulated
// buy/sell of the synthetic asset, term lending with interest accrual, and
// collateralized borrowing. Every operation is an exclusive-per-user
// read-modify-write over the whole ledger, persisted all-or-nothing.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// lockRetryInterval is the polling interval while waiting for a held
// per-user lock.
const lockRetryInterval = 50 * time.Millisecond

var (
	one      = decimal.NewFromInt(1)
	yearDays = decimal.NewFromInt(365)
)

// Config holds the engine's business constants. Rates and the collateral
// ratio are frozen into positions at origination, so editing the config
// never changes an existing position.
type Config struct {
	// SeedCollateral is the starting collateral balance for a brand-new user.
	SeedCollateral decimal.Decimal
	// FallbackPrice replaces the oracle price on any oracle failure or
	// timeout. Oracle errors are never surfaced to callers.
	FallbackPrice decimal.Decimal
	// CollateralRatio multiplies a borrow's value to compute the required
	// collateral lock.
	CollateralRatio decimal.Decimal
	LendRates       domain.RateTable
	BorrowRates     domain.RateTable
	// OracleTimeout bounds the price lookup inside an operation.
	OracleTimeout time.Duration
	// LockTTL bounds how long a crashed holder can keep a user's ledger
	// locked when a distributed lock manager is used.
	LockTTL time.Duration
	// LockWait bounds how long an operation waits for the per-user lock
	// before failing with ErrLedgerBusy.
	LockWait time.Duration
}

// DefaultConfig returns the constants used by the original product.
func DefaultConfig() Config {
	return Config{
		SeedCollateral:  decimal.NewFromInt(100),
		FallbackPrice:   decimal.NewFromFloat(0.05),
		CollateralRatio: decimal.NewFromFloat(1.5),
		LendRates:       domain.DefaultLendRates(),
		BorrowRates:     domain.DefaultBorrowRates(),
		OracleTimeout:   10 * time.Second,
		LockTTL:         15 * time.Second,
		LockWait:        2 * time.Second,
	}
}

// Engine owns all reads and mutations of per-user ledgers. Operations for a
// single user are serialized through the lock manager; operations for
// distinct users run independently.
type Engine struct {
	store  domain.LedgerStore
	oracle domain.PriceOracle
	locks  domain.LockManager
	bus    domain.SignalBus
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(
	store domain.LedgerStore,
	oracle domain.PriceOracle,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:  store,
		oracle: oracle,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger_engine")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithSignalBus attaches an event bus. Ledger events are published
// best-effort after each successful mutation; publish failures are logged
// and never affect the operation's outcome.
func (e *Engine) WithSignalBus(bus domain.SignalBus) *Engine {
	e.bus = bus
	return e
}

// WithClock overrides the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ClaimResult describes a successful lend claim.
type ClaimResult struct {
	Position domain.LendPosition `json:"position"`
	Payout   decimal.Decimal     `json:"payout"`
	Interest decimal.Decimal     `json:"interest"`
	Balances domain.BalanceView  `json:"balances"`
}

// RepayResult describes a successful borrow repayment.
type RepayResult struct {
	Position           domain.BorrowPosition `json:"position"`
	Repayment          decimal.Decimal       `json:"repayment"`
	CollateralReleased decimal.Decimal       `json:"collateral_released"`
	Balances           domain.BalanceView    `json:"balances"`
}

// BuyAsset exchanges collateral for assetAmount of the synthetic asset at
// the current price. It fails with ErrInsufficientFunds when the collateral
// balance cannot cover the cost; no state is touched on failure.
func (e *Engine) BuyAsset(ctx context.Context, userID string, assetAmount decimal.Decimal) (domain.BalanceView, error) {
	if !assetAmount.IsPositive() {
		return domain.BalanceView{}, domain.ErrInvalidAmount
	}

	price := e.currentPrice(ctx)
	cost := assetAmount.Mul(price)

	l, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		if l.CollateralBalance.LessThan(cost) {
			return domain.ErrInsufficientFunds
		}
		l.CollateralBalance = l.CollateralBalance.Sub(cost)
		l.AssetBalance = l.AssetBalance.Add(assetAmount)
		l.PrependTransaction(domain.Transaction{
			ID:               uuid.New().String(),
			Kind:             domain.TxKindBuy,
			AssetAmount:      assetAmount,
			CollateralAmount: cost,
			Note:             fmt.Sprintf("Buy %s vGold", assetAmount),
			Status:           domain.TxStatusCompleted,
			CreatedAt:        e.now(),
		})
		return nil
	})
	if err != nil {
		return domain.BalanceView{}, err
	}

	e.publish(ctx, "buy", map[string]any{
		"user_id": userID,
		"amount":  assetAmount,
		"cost":    cost,
		"price":   price,
	})
	return e.balanceView(l, price), nil
}

// SellAsset exchanges assetAmount of the synthetic asset back to collateral
// at the current price. It fails with ErrInsufficientAsset when the asset
// balance is too small.
func (e *Engine) SellAsset(ctx context.Context, userID string, assetAmount decimal.Decimal) (domain.BalanceView, error) {
	if !assetAmount.IsPositive() {
		return domain.BalanceView{}, domain.ErrInvalidAmount
	}

	price := e.currentPrice(ctx)
	proceeds := assetAmount.Mul(price)

	l, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		if l.AssetBalance.LessThan(assetAmount) {
			return domain.ErrInsufficientAsset
		}
		l.AssetBalance = l.AssetBalance.Sub(assetAmount)
		l.CollateralBalance = l.CollateralBalance.Add(proceeds)
		l.PrependTransaction(domain.Transaction{
			ID:               uuid.New().String(),
			Kind:             domain.TxKindSell,
			AssetAmount:      assetAmount,
			CollateralAmount: proceeds,
			Note:             fmt.Sprintf("Sell %s vGold", assetAmount),
			Status:           domain.TxStatusCompleted,
			CreatedAt:        e.now(),
		})
		return nil
	})
	if err != nil {
		return domain.BalanceView{}, err
	}

	e.publish(ctx, "sell", map[string]any{
		"user_id":  userID,
		"amount":   assetAmount,
		"proceeds": proceeds,
		"price":    price,
	})
	return e.balanceView(l, price), nil
}

// OpenLend commits principal of the asset for termDays. The interest rate is
// resolved from the lend tier table and frozen into the position. Terms that
// do not map to a tier resolve to the shortest tier; they are never rejected.
func (e *Engine) OpenLend(ctx context.Context, userID string, principal decimal.Decimal, termDays int) (domain.LendPosition, error) {
	if !principal.IsPositive() {
		return domain.LendPosition{}, domain.ErrInvalidAmount
	}

	rate := e.cfg.LendRates.Resolve(termDays)
	var pos domain.LendPosition

	_, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		if l.AssetBalance.LessThan(principal) {
			return domain.ErrInsufficientAsset
		}
		now := e.now()
		pos = domain.LendPosition{
			ID:           uuid.New().String(),
			Principal:    principal,
			InterestRate: rate,
			StartedAt:    now,
			MaturesAt:    now.Add(time.Duration(termDays) * 24 * time.Hour),
			Status:       domain.LendStatusActive,
		}
		l.AssetBalance = l.AssetBalance.Sub(principal)
		l.LendPositions = append(l.LendPositions, pos)
		l.PrependTransaction(domain.Transaction{
			ID:          uuid.New().String(),
			Kind:        domain.TxKindLend,
			AssetAmount: principal,
			Note:        fmt.Sprintf("Lend %s vGold for %d days", principal, termDays),
			Status:      domain.TxStatusCompleted,
			CreatedAt:   now,
		})
		return nil
	})
	if err != nil {
		return domain.LendPosition{}, err
	}

	e.publish(ctx, "lend", map[string]any{
		"user_id":     userID,
		"position_id": pos.ID,
		"principal":   principal,
		"term_days":   termDays,
		"rate":        rate,
	})
	return pos, nil
}

// ClaimLend pays out a matured lend position: principal plus simple interest
// prorated by the position's own term length (not by the actual wait beyond
// maturity). Claiming exactly at maturity succeeds.
func (e *Engine) ClaimLend(ctx context.Context, userID, positionID string) (ClaimResult, error) {
	var res ClaimResult

	l, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		i, ok := l.ActiveLend(positionID)
		if !ok {
			return domain.ErrPositionNotFound
		}
		pos := l.LendPositions[i]
		now := e.now()
		if !pos.Matured(now) {
			return domain.ErrNotMatured
		}

		termFraction := pos.TermDays().Div(yearDays)
		interest := pos.Principal.Mul(pos.InterestRate).Mul(termFraction)
		payout := pos.Principal.Add(interest)

		l.AssetBalance = l.AssetBalance.Add(payout)
		l.LendPositions[i].Status = domain.LendStatusCompleted
		l.PrependTransaction(domain.Transaction{
			ID:          uuid.New().String(),
			Kind:        domain.TxKindClaim,
			AssetAmount: payout,
			Note:        fmt.Sprintf("Claim returns for lend %s", pos.ID),
			Status:      domain.TxStatusCompleted,
			CreatedAt:   now,
		})

		res = ClaimResult{
			Position: l.LendPositions[i],
			Payout:   payout,
			Interest: interest,
		}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	res.Balances = e.balanceView(l, e.currentPrice(ctx))
	e.publish(ctx, "claim", map[string]any{
		"user_id":     userID,
		"position_id": positionID,
		"payout":      res.Payout,
		"interest":    res.Interest,
	})
	return res, nil
}

// OpenBorrow hands out principal of the asset against a collateral lock of
// principal * price * collateral ratio, fixed at origination. Positions are
// never re-margined as the price moves afterwards.
func (e *Engine) OpenBorrow(ctx context.Context, userID string, principal decimal.Decimal, termDays int) (domain.BorrowPosition, error) {
	if !principal.IsPositive() {
		return domain.BorrowPosition{}, domain.ErrInvalidAmount
	}

	rate := e.cfg.BorrowRates.Resolve(termDays)
	price := e.currentPrice(ctx)
	required := principal.Mul(price).Mul(e.cfg.CollateralRatio)
	var pos domain.BorrowPosition

	_, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		if l.CollateralBalance.LessThan(required) {
			return domain.ErrInsufficientCollateral
		}
		now := e.now()
		pos = domain.BorrowPosition{
			ID:               uuid.New().String(),
			Principal:        principal,
			CollateralLocked: required,
			InterestRate:     rate,
			StartedAt:        now,
			DueAt:            now.Add(time.Duration(termDays) * 24 * time.Hour),
			Status:           domain.BorrowStatusActive,
		}
		l.CollateralBalance = l.CollateralBalance.Sub(required)
		l.AssetBalance = l.AssetBalance.Add(principal)
		l.BorrowPositions = append(l.BorrowPositions, pos)
		l.PrependTransaction(domain.Transaction{
			ID:               uuid.New().String(),
			Kind:             domain.TxKindBorrow,
			AssetAmount:      principal,
			CollateralAmount: required,
			Note:             fmt.Sprintf("Borrow %s vGold for %d days", principal, termDays),
			Status:           domain.TxStatusCompleted,
			CreatedAt:        now,
		})
		return nil
	})
	if err != nil {
		return domain.BorrowPosition{}, err
	}

	e.publish(ctx, "borrow", map[string]any{
		"user_id":           userID,
		"position_id":       pos.ID,
		"principal":         principal,
		"collateral_locked": required,
		"rate":              rate,
	})
	return pos, nil
}

// RepayBorrow settles an active borrow at a flat principal * (1 + rate);
// repaying early or late costs the same. The collateral lock is released in
// full on success.
func (e *Engine) RepayBorrow(ctx context.Context, userID, positionID string) (RepayResult, error) {
	var res RepayResult

	l, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		i, ok := l.ActiveBorrow(positionID)
		if !ok {
			return domain.ErrPositionNotFound
		}
		pos := l.BorrowPositions[i]
		repayment := pos.Principal.Mul(one.Add(pos.InterestRate))
		if l.AssetBalance.LessThan(repayment) {
			return domain.ErrInsufficientAsset
		}

		l.AssetBalance = l.AssetBalance.Sub(repayment)
		l.CollateralBalance = l.CollateralBalance.Add(pos.CollateralLocked)
		l.BorrowPositions[i].Status = domain.BorrowStatusRepaid
		l.PrependTransaction(domain.Transaction{
			ID:               uuid.New().String(),
			Kind:             domain.TxKindRepay,
			AssetAmount:      repayment,
			CollateralAmount: pos.CollateralLocked,
			Note:             fmt.Sprintf("Repay loan %s", pos.ID),
			Status:           domain.TxStatusCompleted,
			CreatedAt:        e.now(),
		})

		res = RepayResult{
			Position:           l.BorrowPositions[i],
			Repayment:          repayment,
			CollateralReleased: pos.CollateralLocked,
		}
		return nil
	})
	if err != nil {
		return RepayResult{}, err
	}

	res.Balances = e.balanceView(l, e.currentPrice(ctx))
	e.publish(ctx, "repay", map[string]any{
		"user_id":             userID,
		"position_id":         positionID,
		"repayment":           res.Repayment,
		"collateral_released": res.CollateralReleased,
	})
	return res, nil
}

// Snapshot records a valuation sample of the user's holdings at the current
// price. History beyond the cap is evicted oldest-first.
func (e *Engine) Snapshot(ctx context.Context, userID string) (domain.PortfolioSnapshot, error) {
	price := e.currentPrice(ctx)
	var snap domain.PortfolioSnapshot

	_, err := e.mutate(ctx, userID, func(l *domain.Ledger) error {
		assetValue := l.AssetBalance.Mul(price)
		snap = domain.PortfolioSnapshot{
			Timestamp:       e.now(),
			TotalValue:      l.CollateralBalance.Add(assetValue),
			AssetValue:      assetValue,
			CollateralValue: l.CollateralBalance,
		}
		l.AppendSnapshot(snap)
		return nil
	})
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}
	return snap, nil
}

// Portfolio returns the user's ledger, seeded (but not persisted) when the
// user has none yet.
func (e *Engine) Portfolio(ctx context.Context, userID string) (domain.Ledger, error) {
	unlock, err := e.lockLedger(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}
	defer unlock()

	return e.loadOrSeed(ctx, userID)
}

// Transactions returns the user's transaction log, most recent first, with
// pagination.
func (e *Engine) Transactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	l, err := e.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs := l.Transactions
	if opts.Offset > 0 {
		if opts.Offset >= len(txs) {
			return []domain.Transaction{}, nil
		}
		txs = txs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(txs) {
		txs = txs[:opts.Limit]
	}
	return txs, nil
}

// History returns portfolio snapshots within the trailing window of the
// given number of days (default 30).
func (e *Engine) History(ctx context.Context, userID string, days int) ([]domain.PortfolioSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	l, err := e.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	cutoff := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	out := make([]domain.PortfolioSnapshot, 0, len(l.History))
	for _, s := range l.History {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

// CurrentPrice exposes the engine's price view (oracle with fallback) for
// callers that render balances.
func (e *Engine) CurrentPrice(ctx context.Context) decimal.Decimal {
	return e.currentPrice(ctx)
}

// mutate runs fn against a working copy of the user's ledger under the
// per-user lock and persists the result all-or-nothing. When fn or the save
// fails, the stored ledger is untouched and the working copy is discarded.
func (e *Engine) mutate(ctx context.Context, userID string, fn func(l *domain.Ledger) error) (domain.Ledger, error) {
	unlock, err := e.lockLedger(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}
	defer unlock()

	current, err := e.loadOrSeed(ctx, userID)
	if err != nil {
		return domain.Ledger{}, err
	}

	working := current.Clone()
	if err := fn(&working); err != nil {
		return domain.Ledger{}, err
	}

	if err := e.store.Save(ctx, userID, working); err != nil {
		e.logger.ErrorContext(ctx, "ledger save failed, mutation discarded",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return domain.Ledger{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return working, nil
}

func (e *Engine) loadOrSeed(ctx context.Context, userID string) (domain.Ledger, error) {
	l, err := e.store.Load(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewLedger(userID, e.cfg.SeedCollateral), nil
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("ledger: load %s: %w", userID, err)
	}
	return l, nil
}

// lockLedger acquires the exclusive per-user lock, polling while it is held
// elsewhere, up to the configured wait budget.
func (e *Engine) lockLedger(ctx context.Context, userID string) (func(), error) {
	key := "ledger:" + userID
	deadline := time.Now().Add(e.cfg.LockWait)

	for {
		unlock, err := e.locks.Acquire(ctx, key, e.cfg.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("ledger: acquire lock %s: %w", key, err)
		}
		if time.Now().After(deadline) {
			return nil, domain.ErrLedgerBusy
		}
		select {
		case <-ctx.Done():
			return nil, domain.ErrLedgerBusy
		case <-time.After(lockRetryInterval):
		}
	}
}

// currentPrice resolves the oracle price within the configured timeout and
// collapses any failure or non-positive result to the fallback price.
func (e *Engine) currentPrice(ctx context.Context) decimal.Decimal {
	octx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	defer cancel()

	price, err := e.oracle.GetPrice(octx)
	if err != nil || !price.IsPositive() {
		if err != nil {
			e.logger.WarnContext(ctx, "price oracle failed, using fallback",
				slog.String("fallback", e.cfg.FallbackPrice.String()),
				slog.String("error", err.Error()),
			)
		}
		return e.cfg.FallbackPrice
	}
	return price
}

func (e *Engine) balanceView(l domain.Ledger, price decimal.Decimal) domain.BalanceView {
	return domain.BalanceView{
		UserID:            l.UserID,
		CollateralBalance: l.CollateralBalance,
		AssetBalance:      l.AssetBalance,
		Price:             price,
	}
}

// publish emits a ledger event on the "ledger" channel, best-effort.
func (e *Engine) publish(ctx context.Context, event string, fields map[string]any) {
	if e.bus == nil {
		return
	}
	fields["event"] = event
	fields["timestamp"] = e.now().Format(time.RFC3339Nano)
	payload, _ := json.Marshal(fields)
	if err := e.bus.Publish(ctx, "ledger", payload); err != nil {
		e.logger.WarnContext(ctx, "publish ledger event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
