package memory

import (
	"context"
	"sync"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.SessionStore = (*SessionStore)(nil)

// SessionStore keeps wallet sessions in a map keyed by user ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.WalletSession
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]domain.WalletSession{}}
}

// Upsert stores or replaces the user's wallet session.
func (s *SessionStore) Upsert(_ context.Context, sess domain.WalletSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.UserID] = sess
	return nil
}

// Get returns the user's wallet session or domain.ErrNotFound.
func (s *SessionStore) Get(_ context.Context, userID string) (domain.WalletSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return domain.WalletSession{}, domain.ErrNotFound
	}
	return sess, nil
}
