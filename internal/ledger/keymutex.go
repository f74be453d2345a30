package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.LockManager = (*KeyMutex)(nil)

// KeyMutex is an in-process LockManager keyed by string. It serves
// single-node deployments and tests; the TTL parameter is ignored because a
// process crash releases the locks anyway.
type KeyMutex struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewKeyMutex creates an empty in-process lock manager.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{held: map[string]chan struct{}{}}
}

// Acquire returns immediately with domain.ErrLockHeld when the key is
// already held, matching the non-blocking contract of the distributed
// implementation. The returned unlock is idempotent.
func (m *KeyMutex) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.held[key]; ok {
		m.mu.Unlock()
		return nil, domain.ErrLockHeld
	}
	ch := make(chan struct{})
	m.held[key] = ch
	m.mu.Unlock()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
			close(ch)
		})
	}
	return unlock, nil
}
