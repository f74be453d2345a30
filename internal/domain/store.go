package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerStore persists whole per-user ledgers. Save must be all-or-nothing:
// a caller either observes the previous ledger or the complete new one,
// never a partial write.
type LedgerStore interface {
	// Load returns the ledger for the given user, or ErrNotFound when the
	// user has no ledger yet.
	Load(ctx context.Context, userID string) (Ledger, error)
	// Save atomically replaces the user's ledger.
	Save(ctx context.Context, userID string, ledger Ledger) error
	// ListUserIDs returns the identifiers of every stored ledger.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// WalletSession links a chat user to a wallet address.
type WalletSession struct {
	UserID     string    `json:"user_id"`
	Address    string    `json:"address"`
	WalletType string    `json:"wallet_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionStore persists wallet sessions.
type SessionStore interface {
	Upsert(ctx context.Context, s WalletSession) error
	Get(ctx context.Context, userID string) (WalletSession, error)
}

// PriceHistoryStore persists price observations for a symbol.
type PriceHistoryStore interface {
	Append(ctx context.Context, symbol string, p PricePoint) error
	ListSince(ctx context.Context, symbol string, since time.Time) ([]PricePoint, error)
	Latest(ctx context.Context, symbol string) (PricePoint, error)
}
