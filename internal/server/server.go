// Package server assembles the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goldchainlabs/goldbot/internal/server/handler"
	"github.com/goldchainlabs/goldbot/internal/server/middleware"
	"github.com/goldchainlabs/goldbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey empty disables authentication.
	APIKey string
}

// Handlers aggregates the endpoint handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Price    *handler.PriceHandler
	Ledger   *handler.LedgerHandler
	Sessions *handler.SessionHandler
}

// Server is the headless HTTP + WebSocket API for the gold ledger.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, no auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Price endpoints.
	mux.HandleFunc("GET /api/price", handlers.Price.GetPrice)
	mux.HandleFunc("GET /api/price/history", handlers.Price.GetHistory)
	mux.HandleFunc("GET /api/price/analytics", handlers.Price.GetAnalytics)

	// Per-user ledger endpoints.
	mux.HandleFunc("GET /api/users/{id}/portfolio", handlers.Ledger.GetPortfolio)
	mux.HandleFunc("GET /api/users/{id}/transactions", handlers.Ledger.ListTransactions)
	mux.HandleFunc("GET /api/users/{id}/history", handlers.Ledger.GetHistory)
	mux.HandleFunc("POST /api/users/{id}/buy", handlers.Ledger.Buy)
	mux.HandleFunc("POST /api/users/{id}/sell", handlers.Ledger.Sell)
	mux.HandleFunc("POST /api/users/{id}/lend", handlers.Ledger.OpenLend)
	mux.HandleFunc("POST /api/users/{id}/lend/{position}/claim", handlers.Ledger.ClaimLend)
	mux.HandleFunc("POST /api/users/{id}/borrow", handlers.Ledger.OpenBorrow)
	mux.HandleFunc("POST /api/users/{id}/borrow/{position}/repay", handlers.Ledger.RepayBorrow)
	mux.HandleFunc("POST /api/users/{id}/snapshot", handlers.Ledger.Snapshot)

	// Wallet sessions.
	mux.HandleFunc("GET /api/users/{id}/wallet", handlers.Sessions.Get)
	mux.HandleFunc("POST /api/users/{id}/wallet", handlers.Sessions.Connect)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until an error or shutdown.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware allows the configured origins; an empty list allows all.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}
				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
