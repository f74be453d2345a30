package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LendStatus tracks the lifecycle of a lend position.
type LendStatus string

const (
	LendStatusActive    LendStatus = "active"
	LendStatusCompleted LendStatus = "completed"
)

// BorrowStatus tracks the lifecycle of a borrow position.
type BorrowStatus string

const (
	BorrowStatusActive BorrowStatus = "active"
	BorrowStatusRepaid BorrowStatus = "repaid"
)

// LendPosition is asset principal committed for a fixed term. The interest
// rate is a frozen snapshot of the rate tier at origination; editing the rate
// table later never changes an existing position.
type LendPosition struct {
	ID           string          `json:"id"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	StartedAt    time.Time       `json:"started_at"`
	MaturesAt    time.Time       `json:"matures_at"`
	Status       LendStatus      `json:"status"`
}

// Matured reports whether the position can be claimed at the given instant.
// Claiming exactly at maturity succeeds.
func (p LendPosition) Matured(now time.Time) bool {
	return !now.Before(p.MaturesAt)
}

// TermDays returns the position's contractual term length in days.
func (p LendPosition) TermDays() decimal.Decimal {
	return decimal.NewFromFloat(p.MaturesAt.Sub(p.StartedAt).Hours() / 24)
}

// BorrowPosition is asset principal received against locked collateral. The
// collateral lock is fixed at origination from the price at that moment; the
// position is never re-margined as the price moves.
type BorrowPosition struct {
	ID               string          `json:"id"`
	Principal        decimal.Decimal `json:"principal"`
	CollateralLocked decimal.Decimal `json:"collateral_locked"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	StartedAt        time.Time       `json:"started_at"`
	DueAt            time.Time       `json:"due_at"`
	Status           BorrowStatus    `json:"status"`
}
