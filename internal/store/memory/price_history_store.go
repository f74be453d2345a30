package memory

import (
	"context"
	"sync"
	"time"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)

// historyMaxPoints caps the retained series per symbol, oldest dropped first.
const historyMaxPoints = 1000

// PriceHistoryStore keeps price observations per symbol in append order.
type PriceHistoryStore struct {
	mu     sync.RWMutex
	points map[string][]domain.PricePoint
}

// NewPriceHistoryStore creates an empty in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{points: map[string][]domain.PricePoint{}}
}

// Append records a price observation for the symbol.
func (s *PriceHistoryStore) Append(_ context.Context, symbol string, p domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pts := append(s.points[symbol], p)
	if len(pts) > historyMaxPoints {
		pts = pts[len(pts)-historyMaxPoints:]
	}
	s.points[symbol] = pts
	return nil
}

// ListSince returns observations at or after the given time, oldest first.
func (s *PriceHistoryStore) ListSince(_ context.Context, symbol string, since time.Time) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PricePoint
	for _, p := range s.points[symbol] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Latest returns the most recent observation or domain.ErrNotFound.
func (s *PriceHistoryStore) Latest(_ context.Context, symbol string) (domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pts := s.points[symbol]
	if len(pts) == 0 {
		return domain.PricePoint{}, domain.ErrNotFound
	}
	return pts[len(pts)-1], nil
}
