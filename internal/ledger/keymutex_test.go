package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

func TestKeyMutexExclusivePerKey(t *testing.T) {
	m := NewKeyMutex()
	ctx := context.Background()

	unlockA, err := m.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "a", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	// Distinct keys do not contend.
	unlockB, err := m.Acquire(ctx, "b", time.Minute)
	require.NoError(t, err)
	unlockB()

	unlockA()
	unlockA() // idempotent

	unlockA2, err := m.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	unlockA2()
}

func TestKeyMutexCancelledContext(t *testing.T) {
	m := NewKeyMutex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Acquire(ctx, "a", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
