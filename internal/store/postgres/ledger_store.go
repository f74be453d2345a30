package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.LedgerStore = (*LedgerStore)(nil)

// LedgerStore implements domain.LedgerStore on a single JSONB row per user.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Load returns the user's ledger, or domain.ErrNotFound for unknown users.
func (s *LedgerStore) Load(ctx context.Context, userID string) (domain.Ledger, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM ledgers WHERE user_id = $1", userID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ledger{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("postgres: load ledger %s: %w", userID, err)
	}

	var l domain.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Ledger{}, fmt.Errorf("postgres: decode ledger %s: %w", userID, err)
	}
	return l, nil
}

// Save replaces the user's ledger in a single upsert. Readers observe either
// the previous document or the new one, never a mix.
func (s *LedgerStore) Save(ctx context.Context, userID string, l domain.Ledger) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("postgres: encode ledger %s: %w", userID, err)
	}

	const query = `
		INSERT INTO ledgers (user_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, userID, data); err != nil {
		return fmt.Errorf("postgres: save ledger %s: %w", userID, err)
	}
	return nil
}

// ListUserIDs returns every ledger owner in sorted order.
func (s *LedgerStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT user_id FROM ledgers ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate ledger users: %w", err)
	}
	return ids, nil
}
