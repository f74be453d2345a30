package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a SessionStore backed by the given pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Upsert stores or replaces the user's wallet session.
func (s *SessionStore) Upsert(ctx context.Context, sess domain.WalletSession) error {
	const query = `
		INSERT INTO wallet_sessions (user_id, address, wallet_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET address = EXCLUDED.address,
		    wallet_type = EXCLUDED.wallet_type,
		    created_at = EXCLUDED.created_at`
	if _, err := s.pool.Exec(ctx, query, sess.UserID, sess.Address, sess.WalletType, sess.CreatedAt); err != nil {
		return fmt.Errorf("postgres: upsert session %s: %w", sess.UserID, err)
	}
	return nil
}

// Get returns the user's wallet session or domain.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, userID string) (domain.WalletSession, error) {
	var sess domain.WalletSession
	err := s.pool.QueryRow(ctx,
		"SELECT user_id, address, wallet_type, created_at FROM wallet_sessions WHERE user_id = $1",
		userID,
	).Scan(&sess.UserID, &sess.Address, &sess.WalletType, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WalletSession{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.WalletSession{}, fmt.Errorf("postgres: get session %s: %w", userID, err)
	}
	return sess, nil
}
