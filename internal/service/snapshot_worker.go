package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// Snapshotter records a portfolio valuation sample for one user.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID string) (domain.PortfolioSnapshot, error)
}

// SnapshotWorker periodically records a valuation snapshot for every known
// ledger. Per-user failures are logged and do not stop the sweep.
type SnapshotWorker struct {
	engine   Snapshotter
	store    domain.LedgerStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSnapshotWorker creates a worker sweeping on the given interval.
func NewSnapshotWorker(engine Snapshotter, store domain.LedgerStore, interval time.Duration, logger *slog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SnapshotWorker{
		engine:   engine,
		store:    store,
		interval: interval,
		logger:   logger.With(slog.String("component", "snapshot_worker")),
	}
}

// Run sweeps until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "snapshot worker started",
		slog.Duration("interval", w.interval),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep snapshots every stored ledger once.
func (w *SnapshotWorker) sweep(ctx context.Context) {
	userIDs, err := w.store.ListUserIDs(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "list ledgers for snapshot sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	var failed int
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.engine.Snapshot(ctx, userID); err != nil {
			failed++
			w.logger.WarnContext(ctx, "snapshot failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	w.logger.DebugContext(ctx, "snapshot sweep complete",
		slog.Int("users", len(userIDs)),
		slog.Int("failed", failed),
	)
}
