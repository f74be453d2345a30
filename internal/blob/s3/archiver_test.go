package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/domain"
	"github.com/goldchainlabs/goldbot/internal/store/memory"
)

type captureWriter struct {
	path        string
	contentType string
	data        []byte
	puts        int
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.data = b
	w.puts++
	return nil
}

func TestArchiveTransactions(t *testing.T) {
	ctx := context.Background()
	ledgers := memory.NewLedgerStore()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	l := domain.NewLedger("alice", decimal.NewFromInt(100))
	l.PrependTransaction(domain.Transaction{
		ID: "old", Kind: domain.TxKindBuy, Status: domain.TxStatusCompleted,
		CreatedAt: cutoff.Add(-time.Hour),
	})
	l.PrependTransaction(domain.Transaction{
		ID: "new", Kind: domain.TxKindSell, Status: domain.TxStatusCompleted,
		CreatedAt: cutoff.Add(time.Hour),
	})
	require.NoError(t, ledgers.Save(ctx, "alice", l))

	w := &captureWriter{}
	a := NewArchiver(w, ledgers, memory.NewPriceHistoryStore(), slog.New(slog.DiscardHandler))

	count, err := a.ArchiveTransactions(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "archive/transactions/2025-06.jsonl", w.path)
	assert.Equal(t, "application/x-ndjson", w.contentType)

	lines := bytes.Split(bytes.TrimSpace(w.data), []byte("\n"))
	require.Len(t, lines, 1)
	var rec archivedTransaction
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "old", rec.ID)
}

func TestArchiveTransactionsNothingToExport(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, memory.NewLedgerStore(), memory.NewPriceHistoryStore(), slog.New(slog.DiscardHandler))

	count, err := a.ArchiveTransactions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, w.puts)
}

func TestArchivePrices(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceHistoryStore()
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, prices.Append(ctx, "vgold", domain.PricePoint{
		Timestamp: cutoff.Add(-time.Minute), Price: decimal.NewFromFloat(0.05),
	}))
	require.NoError(t, prices.Append(ctx, "vgold", domain.PricePoint{
		Timestamp: cutoff.Add(time.Minute), Price: decimal.NewFromFloat(0.06),
	}))

	w := &captureWriter{}
	a := NewArchiver(w, memory.NewLedgerStore(), prices, slog.New(slog.DiscardHandler))

	count, err := a.ArchivePrices(ctx, "vgold", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "archive/prices/2025-06.jsonl", w.path)
}
