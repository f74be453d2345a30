// Package domain defines the core ledger model and the interfaces that
// connect it to storage, caching, and price collaborators.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxKind classifies a ledger transaction.
type TxKind string

const (
	TxKindBuy    TxKind = "buy"
	TxKindSell   TxKind = "sell"
	TxKindLend   TxKind = "lend"
	TxKindBorrow TxKind = "borrow"
	TxKindRepay  TxKind = "repay"
	TxKindClaim  TxKind = "claim"
)

// TxStatus tracks the outcome of a transaction.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// Transaction is an immutable record of a single ledger mutation. Amounts are
// denominated in the synthetic asset; CollateralAmount carries the collateral
// leg when one exists (cost, proceeds, or collateral locked/released).
type Transaction struct {
	ID               string          `json:"id"`
	Kind             TxKind          `json:"kind"`
	AssetAmount      decimal.Decimal `json:"asset_amount"`
	CollateralAmount decimal.Decimal `json:"collateral_amount,omitempty"`
	Note             string          `json:"note,omitempty"`
	Status           TxStatus        `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PortfolioSnapshot is a periodic valuation sample of a user's holdings.
type PortfolioSnapshot struct {
	Timestamp       time.Time       `json:"timestamp"`
	TotalValue      decimal.Decimal `json:"total_value"`
	AssetValue      decimal.Decimal `json:"asset_value"`
	CollateralValue decimal.Decimal `json:"collateral_value"`
}

// SnapshotHistoryCap bounds the portfolio history; the oldest entries are
// evicted first once the cap is exceeded.
const SnapshotHistoryCap = 100

// Ledger is the full simulated state for one user: two fungible balances,
// the transaction log (most recent first), open and historical positions,
// and capped valuation history. A Ledger is exclusively owned and mutated by
// the ledger engine on behalf of exactly one user identifier.
type Ledger struct {
	UserID            string              `json:"user_id"`
	CollateralBalance decimal.Decimal     `json:"collateral_balance"`
	AssetBalance      decimal.Decimal     `json:"asset_balance"`
	Transactions      []Transaction       `json:"transactions"`
	LendPositions     []LendPosition      `json:"lend_positions"`
	BorrowPositions   []BorrowPosition    `json:"borrow_positions"`
	History           []PortfolioSnapshot `json:"history"`
}

// NewLedger returns a fresh ledger seeded with the starting collateral
// balance and no asset holdings.
func NewLedger(userID string, seedCollateral decimal.Decimal) Ledger {
	return Ledger{
		UserID:            userID,
		CollateralBalance: seedCollateral,
		AssetBalance:      decimal.Zero,
	}
}

// Clone returns a deep copy of the ledger so that an operation can mutate a
// working copy and discard it if persistence fails.
func (l Ledger) Clone() Ledger {
	c := l
	c.Transactions = append([]Transaction(nil), l.Transactions...)
	c.LendPositions = append([]LendPosition(nil), l.LendPositions...)
	c.BorrowPositions = append([]BorrowPosition(nil), l.BorrowPositions...)
	c.History = append([]PortfolioSnapshot(nil), l.History...)
	return c
}

// PrependTransaction inserts a transaction at the head of the log
// (most-recent-first ordering).
func (l *Ledger) PrependTransaction(tx Transaction) {
	l.Transactions = append([]Transaction{tx}, l.Transactions...)
}

// AppendSnapshot records a valuation sample and evicts the oldest entries
// beyond SnapshotHistoryCap.
func (l *Ledger) AppendSnapshot(s PortfolioSnapshot) {
	l.History = append(l.History, s)
	if n := len(l.History); n > SnapshotHistoryCap {
		l.History = l.History[n-SnapshotHistoryCap:]
	}
}

// ActiveLend returns the active lend position with the given id, if any.
func (l *Ledger) ActiveLend(id string) (int, bool) {
	for i, p := range l.LendPositions {
		if p.ID == id && p.Status == LendStatusActive {
			return i, true
		}
	}
	return 0, false
}

// ActiveBorrow returns the active borrow position with the given id, if any.
func (l *Ledger) ActiveBorrow(id string) (int, bool) {
	for i, p := range l.BorrowPositions {
		if p.ID == id && p.Status == BorrowStatusActive {
			return i, true
		}
	}
	return 0, false
}

// BalanceView is the balance summary returned by ledger operations.
type BalanceView struct {
	UserID            string          `json:"user_id"`
	CollateralBalance decimal.Decimal `json:"collateral_balance"`
	AssetBalance      decimal.Decimal `json:"asset_balance"`
	Price             decimal.Decimal `json:"price"`
}

// PricePoint is a single stored price observation.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}
