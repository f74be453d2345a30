package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

const streamMaxLen = 10000

// SignalBus is an in-process pub/sub and stream implementation for
// single-node runs without Redis. Published payloads fan out to every
// live subscriber of the channel; slow subscribers drop messages rather
// than block publishers.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  int64
}

var _ domain.SignalBus = (*SignalBus)(nil)

// NewSignalBus creates an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers payload to every subscriber of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := make([]chan []byte, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to the given channel.
// The subscription ends when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// StreamAppend records payload on the named stream, keeping at most
// streamMaxLen entries.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	entries := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(b.nextID, 10),
		Payload: payload,
	})
	if len(entries) > streamMaxLen {
		entries = entries[len(entries)-streamMaxLen:]
	}
	b.streams[stream] = entries
	return nil
}

// StreamRead returns up to count entries with IDs greater than lastID.
// An empty lastID reads from the beginning.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var after int64
	if lastID != "" {
		n, err := strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		after = n
	}

	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		id, _ := strconv.ParseInt(m.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}
