// Package memory provides in-memory store implementations used by tests and
// by single-node runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.LedgerStore = (*LedgerStore)(nil)

// LedgerStore keeps one ledger per user in a map. Save replaces the stored
// ledger whole, and both Load and Save deep-copy so callers never alias the
// stored slices.
type LedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]domain.Ledger
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{ledgers: map[string]domain.Ledger{}}
}

// Load returns the user's ledger or domain.ErrNotFound.
func (s *LedgerStore) Load(_ context.Context, userID string) (domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[userID]
	if !ok {
		return domain.Ledger{}, domain.ErrNotFound
	}
	return l.Clone(), nil
}

// Save atomically replaces the user's ledger.
func (s *LedgerStore) Save(_ context.Context, userID string, l domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[userID] = l.Clone()
	return nil
}

// ListUserIDs returns every stored user ID in sorted order.
func (s *LedgerStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
