package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

// SessionHandler serves the wallet-link endpoints.
type SessionHandler struct {
	sessions domain.SessionStore
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions domain.SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type connectRequest struct {
	Address    string `json:"address"`
	WalletType string `json:"wallet_type"`
}

// Connect links a wallet address to the user.
// POST /api/users/{id}/wallet
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	walletType := strings.ToLower(strings.TrimSpace(req.WalletType))
	if walletType == "" {
		walletType = "pera"
	}

	sess := domain.WalletSession{
		UserID:     r.PathValue("id"),
		Address:    strings.TrimSpace(req.Address),
		WalletType: walletType,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.sessions.Upsert(r.Context(), sess); err != nil {
		h.logger.ErrorContext(r.Context(), "session upsert failed",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Get returns the user's linked wallet.
// GET /api/users/{id}/wallet
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
