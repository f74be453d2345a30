package domain

import "errors"

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount indicates a non-positive or non-finite amount was
	// supplied. It is returned before any ledger state is read.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds indicates the collateral balance cannot cover a
	// purchase.
	ErrInsufficientFunds = errors.New("insufficient collateral funds")

	// ErrInsufficientAsset indicates the asset balance cannot cover a sale,
	// lend principal, or repayment.
	ErrInsufficientAsset = errors.New("insufficient asset balance")

	// ErrInsufficientCollateral indicates the collateral balance cannot cover
	// the collateral required to open a borrow.
	ErrInsufficientCollateral = errors.New("insufficient collateral for borrow")

	// ErrPositionNotFound indicates the referenced lend/borrow position does
	// not exist, belongs to another user, or is not in the expected status.
	ErrPositionNotFound = errors.New("position not found")

	// ErrNotMatured indicates a claim was attempted before a lend position's
	// maturity timestamp.
	ErrNotMatured = errors.New("lend position not yet matured")

	// ErrPersistence indicates the durable store could not confirm a save.
	// The operation's in-memory mutation has been discarded; callers may retry.
	ErrPersistence = errors.New("persistence failure")

	// ErrLedgerBusy indicates the per-user ledger lock could not be acquired
	// within the engine's wait budget.
	ErrLedgerBusy = errors.New("ledger busy")

	// ErrLockHeld indicates a lock is already held by another party.
	ErrLockHeld = errors.New("lock already held")

	// ErrOracleUnavailable is internal to the price path: it is always
	// collapsed to the fallback price at the engine boundary and never
	// surfaced to callers of ledger operations.
	ErrOracleUnavailable = errors.New("price oracle unavailable")
)
