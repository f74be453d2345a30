package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// Archiver exports aged ledger data to object storage as JSONL files.
//
// Archival is export-only: nothing is removed from the primary store here.
// Trimming the source tables is a separate, explicit operation to be run
// after an archive has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	ledgers domain.LedgerStore
	prices  domain.PriceHistoryStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver over the given stores.
func NewArchiver(
	writer domain.BlobWriter,
	ledgers domain.LedgerStore,
	prices domain.PriceHistoryStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:  writer,
		ledgers: ledgers,
		prices:  prices,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// archivedTransaction is one JSONL line: a ledger transaction annotated with
// its owner so the file stands alone.
type archivedTransaction struct {
	UserID string `json:"user_id"`
	domain.Transaction
}

// ArchiveTransactions exports every transaction recorded strictly before the
// cutoff across all ledgers to archive/transactions/YYYY-MM.jsonl and
// returns the number of exported records.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	userIDs, err := a.ledgers.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions list users: %w", err)
	}

	var records []archivedTransaction
	for _, userID := range userIDs {
		l, err := a.ledgers.Load(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive transactions load %s: %w", userID, err)
		}
		for _, tx := range l.Transactions {
			if tx.CreatedAt.Before(before) {
				records = append(records, archivedTransaction{UserID: userID, Transaction: tx})
			}
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	a.logger.InfoContext(ctx, "transactions archived",
		slog.String("path", path),
		slog.Int("count", len(records)),
		slog.Time("before", before),
	)
	return int64(len(records)), nil
}

// ArchivePrices exports price observations recorded strictly before the
// cutoff to archive/prices/YYYY-MM.jsonl.
func (a *Archiver) ArchivePrices(ctx context.Context, symbol string, before time.Time) (int64, error) {
	all, err := a.prices.ListSince(ctx, symbol, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prices query: %w", err)
	}

	var records []domain.PricePoint
	for _, p := range all {
		if p.Timestamp.Before(before) {
			records = append(records, p)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prices marshal: %w", err)
	}

	path := archivePath("prices", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive prices upload: %w", err)
	}

	a.logger.InfoContext(ctx, "prices archived",
		slog.String("path", path),
		slog.Int("count", len(records)),
		slog.Time("before", before),
	)
	return int64(len(records)), nil
}

// archivePath builds the S3 key, partitioned by the year-month of the
// cutoff, e.g. archive/transactions/2025-06.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
