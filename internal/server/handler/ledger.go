package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/ledger"
)

// LedgerHandler serves the per-user portfolio and trading endpoints. The
// user ID rides in the path; authentication happens at the middleware layer.
type LedgerHandler struct {
	engine *ledger.Engine
	logger *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(engine *ledger.Engine, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, logger: logger}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type termRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	TermDays int             `json:"term_days"`
}

// GetPortfolio returns the user's full ledger.
// GET /api/users/{id}/portfolio
func (h *LedgerHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.Portfolio(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ListTransactions returns the user's transactions, most recent first.
// GET /api/users/{id}/transactions?limit=50&offset=0
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.engine.Transactions(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// GetHistory returns the user's valuation snapshots over a trailing window.
// GET /api/users/{id}/history?days=30
func (h *LedgerHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.engine.History(r.Context(), r.PathValue("id"), queryInt(r, "days", 30))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// Buy exchanges collateral for the asset.
// POST /api/users/{id}/buy
func (h *LedgerHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.engine.BuyAsset(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Sell exchanges the asset back to collateral.
// POST /api/users/{id}/sell
func (h *LedgerHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.engine.SellAsset(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// OpenLend opens a term lend position.
// POST /api/users/{id}/lend
func (h *LedgerHandler) OpenLend(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pos, err := h.engine.OpenLend(r.Context(), r.PathValue("id"), req.Amount, req.TermDays)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// ClaimLend claims a matured lend position.
// POST /api/users/{id}/lend/{position}/claim
func (h *LedgerHandler) ClaimLend(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ClaimLend(r.Context(), r.PathValue("id"), r.PathValue("position"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// OpenBorrow opens a collateralized borrow position.
// POST /api/users/{id}/borrow
func (h *LedgerHandler) OpenBorrow(w http.ResponseWriter, r *http.Request) {
	var req termRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	pos, err := h.engine.OpenBorrow(r.Context(), r.PathValue("id"), req.Amount, req.TermDays)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pos)
}

// RepayBorrow settles an active borrow position.
// POST /api/users/{id}/borrow/{position}/repay
func (h *LedgerHandler) RepayBorrow(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.RepayBorrow(r.Context(), r.PathValue("id"), r.PathValue("position"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Snapshot records a valuation snapshot on demand.
// POST /api/users/{id}/snapshot
func (h *LedgerHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}
