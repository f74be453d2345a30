package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/goldchainlabs/goldbot/internal/bot"
	"github.com/goldchainlabs/goldbot/internal/config"
	"github.com/goldchainlabs/goldbot/internal/domain"
	"github.com/goldchainlabs/goldbot/internal/ledger"
	"github.com/goldchainlabs/goldbot/internal/oracle"
	"github.com/goldchainlabs/goldbot/internal/server"
	"github.com/goldchainlabs/goldbot/internal/server/handler"
	"github.com/goldchainlabs/goldbot/internal/server/ws"
	"github.com/goldchainlabs/goldbot/internal/service"
)

// BotMode runs the Telegram bot plus the shared background loops.
func (a *App) BotMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bot mode")

	g, ctx := errgroup.WithContext(ctx)
	engine, priceSvc := a.buildServices(deps)

	a.startBackground(ctx, g, deps, engine, priceSvc)
	a.startBot(ctx, g, deps, engine, priceSvc)

	return g.Wait()
}

// ServerMode runs the HTTP API plus the shared background loops. The
// Telegram bot is not started.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	engine, priceSvc := a.buildServices(deps)

	a.startBackground(ctx, g, deps, engine, priceSvc)
	a.startHTTPServer(ctx, g, deps, engine, priceSvc)

	return g.Wait()
}

// FullMode runs every subsystem: the Telegram bot, the HTTP API, and the
// background loops.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	engine, priceSvc := a.buildServices(deps)

	a.startBackground(ctx, g, deps, engine, priceSvc)
	if a.cfg.Telegram.Enabled {
		a.startBot(ctx, g, deps, engine, priceSvc)
	}
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, engine, priceSvc)
	}

	return g.Wait()
}

// buildServices constructs the price service and ledger engine shared by
// every mode. The engine consults the price service as its oracle, so a
// fresh cached price never costs an upstream round trip.
func (a *App) buildServices(deps *Dependencies) (*ledger.Engine, *service.PriceService) {
	upstream := oracle.NewGoldchainClient(
		a.cfg.Oracle.BaseURL,
		a.cfg.Oracle.APIKey,
		a.cfg.Oracle.Timeout.Duration,
	)
	priceSvc := service.NewPriceService(
		upstream,
		deps.PriceCache,
		deps.PriceHistory,
		deps.SignalBus,
		a.cfg.Oracle.CacheMaxStale.Duration,
		a.logger,
	)

	engine := ledger.NewEngine(
		deps.LedgerStore,
		priceSvc,
		deps.LockManager,
		engineConfig(&a.cfg.Ledger, a.cfg.Oracle.Timeout.Duration),
		a.logger,
	).WithSignalBus(deps.SignalBus)

	return engine, priceSvc
}

// engineConfig translates the file-level ledger settings into the engine's
// decimal-typed configuration, falling back to the built-in defaults for
// anything left unset.
func engineConfig(cfg *config.LedgerConfig, oracleTimeout time.Duration) ledger.Config {
	out := ledger.DefaultConfig()
	if cfg.SeedCollateral > 0 {
		out.SeedCollateral = decimal.NewFromFloat(cfg.SeedCollateral)
	}
	if cfg.FallbackPrice > 0 {
		out.FallbackPrice = decimal.NewFromFloat(cfg.FallbackPrice)
	}
	if cfg.CollateralRatio > 0 {
		out.CollateralRatio = decimal.NewFromFloat(cfg.CollateralRatio)
	}
	if len(cfg.LendRates) > 0 {
		out.LendRates = rateTable(cfg.LendRates)
	}
	if len(cfg.BorrowRates) > 0 {
		out.BorrowRates = rateTable(cfg.BorrowRates)
	}
	if cfg.LockTTL.Duration > 0 {
		out.LockTTL = cfg.LockTTL.Duration
	}
	if cfg.LockWait.Duration > 0 {
		out.LockWait = cfg.LockWait.Duration
	}
	if oracleTimeout > 0 {
		out.OracleTimeout = oracleTimeout
	}
	return out
}

func rateTable(tiers []config.RateTierConfig) domain.RateTable {
	out := domain.RateTable{Tiers: make([]domain.RateTier, 0, len(tiers))}
	for _, t := range tiers {
		out.Tiers = append(out.Tiers, domain.RateTier{
			MaxTermDays: t.MaxTermDays,
			Rate:        decimal.NewFromFloat(t.Rate),
		})
	}
	return out
}

// startBackground starts the loops common to every mode: the price refresh
// loop, the periodic snapshot sweep, the notifier relay, and the archive
// loop when object storage is configured.
func (a *App) startBackground(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	engine *ledger.Engine,
	priceSvc *service.PriceService,
) {
	g.Go(func() error {
		return priceSvc.RunRefreshLoop(ctx, a.cfg.Oracle.RefreshInterval.Duration)
	})

	snapshots := service.NewSnapshotWorker(engine, deps.LedgerStore, a.cfg.Ledger.SnapshotInterval.Duration, a.logger)
	g.Go(func() error {
		return snapshots.Run(ctx)
	})

	g.Go(func() error {
		return a.runNotifierRelay(ctx, deps)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}
}

// runNotifierRelay forwards ledger events to the configured notification
// senders. The notifier applies its own event filter.
func (a *App) runNotifierRelay(ctx context.Context, deps *Dependencies) error {
	ch, err := deps.SignalBus.Subscribe(ctx, "ledger")
	if err != nil {
		return fmt.Errorf("notifier relay: subscribe ledger: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var evt struct {
				Event  string `json:"event"`
				UserID string `json:"user_id"`
			}
			if err := json.Unmarshal(payload, &evt); err != nil || evt.Event == "" {
				continue
			}
			title := fmt.Sprintf("Ledger %s", evt.Event)
			if err := deps.Notifier.Notify(ctx, evt.Event, title, string(payload)); err != nil {
				a.logger.WarnContext(ctx, "notifier relay: send failed",
					slog.String("event", evt.Event),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// runArchiveLoop periodically exports transactions and price points older
// than the retention window to object storage.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.S3.ArchiveInterval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
			txs, err := deps.Archiver.ArchiveTransactions(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive: transactions export failed",
					slog.String("error", err.Error()),
				)
			}
			prices, err := deps.Archiver.ArchivePrices(ctx, service.Symbol, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive: prices export failed",
					slog.String("error", err.Error()),
				)
			}
			a.logger.InfoContext(ctx, "archive: export complete",
				slog.Int64("transactions", txs),
				slog.Int64("prices", prices),
				slog.Time("cutoff", cutoff),
			)
		}
	}
}

// startBot adds the Telegram bot long-poll loop to the errgroup.
func (a *App) startBot(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	engine *ledger.Engine,
	priceSvc *service.PriceService,
) {
	api := bot.NewAPIClient(a.cfg.Telegram.Token)
	commands := bot.NewCommands(engine, priceSvc, deps.SessionStore, a.logger)
	b := bot.New(api, commands, a.logger)

	g.Go(func() error {
		return b.Run(ctx)
	})
}

// startHTTPServer adds the HTTP API server and WebSocket hub goroutines to
// the errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	engine *ledger.Engine,
	priceSvc *service.PriceService,
) {
	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Price:    handler.NewPriceHandler(engine, priceSvc, a.logger),
			Ledger:   handler.NewLedgerHandler(engine, a.logger),
			Sessions: handler.NewSessionHandler(deps.SessionStore, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
