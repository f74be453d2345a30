package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/goldchainlabs/goldbot/internal/ledger"
	"github.com/goldchainlabs/goldbot/internal/service"
)

// PriceHandler serves the price endpoints.
type PriceHandler struct {
	engine *ledger.Engine
	prices *service.PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(engine *ledger.Engine, prices *service.PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{engine: engine, prices: prices, logger: logger}
}

// GetPrice returns the current price, fallback included.
// GET /api/price
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	price := h.engine.CurrentPrice(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    service.Symbol,
		"price":     price,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHistory returns recorded price points over the trailing window.
// GET /api/price/history?days=7
func (h *PriceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	points, err := h.prices.History(r.Context(), since)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "price history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": service.Symbol,
		"since":  since.Format(time.RFC3339),
		"points": points,
	})
}

// GetAnalytics returns summary statistics over the trailing window.
// GET /api/price/analytics?hours=24
func (h *PriceHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)

	stats, err := h.prices.Analytics(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
