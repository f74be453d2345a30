package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a PriceHistoryStore backed by the given pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Append records a price observation.
func (s *PriceHistoryStore) Append(ctx context.Context, symbol string, p domain.PricePoint) error {
	const query = `
		INSERT INTO price_history (symbol, price, observed_at)
		VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, symbol, p.Price, p.Timestamp); err != nil {
		return fmt.Errorf("postgres: append price %s: %w", symbol, err)
	}
	return nil
}

// ListSince returns observations at or after the given time, oldest first.
func (s *PriceHistoryStore) ListSince(ctx context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	const query = `
		SELECT price, observed_at FROM price_history
		WHERE symbol = $1 AND observed_at >= $2
		ORDER BY observed_at`
	rows, err := s.pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Price, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate price points: %w", err)
	}
	return points, nil
}

// Latest returns the most recent observation or domain.ErrNotFound.
func (s *PriceHistoryStore) Latest(ctx context.Context, symbol string) (domain.PricePoint, error) {
	var p domain.PricePoint
	err := s.pool.QueryRow(ctx,
		"SELECT price, observed_at FROM price_history WHERE symbol = $1 ORDER BY observed_at DESC LIMIT 1",
		symbol,
	).Scan(&p.Price, &p.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PricePoint{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("postgres: latest price %s: %w", symbol, err)
	}
	return p, nil
}
