package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewSignalBus()
	ch, err := bus.Subscribe(ctx, "ledger")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "ledger", []byte(`{"event":"buy"}`)))
	require.NoError(t, bus.Publish(ctx, "other", []byte(`ignored`)))

	select {
	case got := <-ch:
		assert.Equal(t, `{"event":"buy"}`, string(got))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}

	select {
	case got := <-ch:
		t.Fatalf("unexpected message %q", got)
	default:
	}
}

func TestSignalBusSubscribeEndsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewSignalBus()
	ch, err := bus.Subscribe(ctx, "ledger")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after the subscriber is gone must not block or error.
	require.NoError(t, bus.Publish(context.Background(), "ledger", []byte("x")))
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	bus := NewSignalBus()

	require.NoError(t, bus.StreamAppend(ctx, "audit", []byte("a")))
	require.NoError(t, bus.StreamAppend(ctx, "audit", []byte("b")))
	require.NoError(t, bus.StreamAppend(ctx, "audit", []byte("c")))

	msgs, err := bus.StreamRead(ctx, "audit", "", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))
	assert.Equal(t, "b", string(msgs[1].Payload))

	rest, err := bus.StreamRead(ctx, "audit", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))
}
