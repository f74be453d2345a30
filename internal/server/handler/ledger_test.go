package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/ledger"
	"github.com/goldchainlabs/goldbot/internal/store/memory"

	"log/slog"
)

type staticOracle struct{}

func (staticOracle) GetPrice(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.05), nil
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	cfg := ledger.DefaultConfig()
	cfg.LockWait = 100 * time.Millisecond
	eng := ledger.NewEngine(memory.NewLedgerStore(), staticOracle{}, ledger.NewKeyMutex(), cfg, logger)

	h := NewLedgerHandler(eng, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}/portfolio", h.GetPortfolio)
	mux.HandleFunc("GET /api/users/{id}/transactions", h.ListTransactions)
	mux.HandleFunc("POST /api/users/{id}/buy", h.Buy)
	mux.HandleFunc("POST /api/users/{id}/sell", h.Sell)
	mux.HandleFunc("POST /api/users/{id}/lend", h.OpenLend)
	mux.HandleFunc("POST /api/users/{id}/borrow", h.OpenBorrow)
	mux.HandleFunc("POST /api/users/{id}/borrow/{position}/repay", h.RepayBorrow)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestBuyEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/users/alice/buy", `{"amount":"200"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "90", body["collateral_balance"])
	assert.Equal(t, "200", body["asset_balance"])
}

func TestBuyInvalidBody(t *testing.T) {
	mux := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/users/alice/buy", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyInsufficientFunds(t *testing.T) {
	mux := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/users/alice/buy", `{"amount":"99999"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "insufficient")
}

func TestSellNegativeAmount(t *testing.T) {
	mux := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/users/alice/sell", `{"amount":"-3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioSeedsNewUser(t *testing.T) {
	mux := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/users/fresh/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", body["collateral_balance"])
	assert.Equal(t, "0", body["asset_balance"])
}

func TestBorrowAndRepayEndpoints(t *testing.T) {
	mux := newTestMux(t)

	rec, pos := doJSON(t, mux, http.MethodPost, "/api/users/alice/borrow", `{"amount":"50","term_days":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "3.75", pos["collateral_locked"])
	id, ok := pos["id"].(string)
	require.True(t, ok)

	rec, res := doJSON(t, mux, http.MethodPost, "/api/users/alice/borrow/"+id+"/repay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "53", res["repayment"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/users/alice/borrow/"+id+"/repay", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsEndpoint(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/api/users/alice/buy", `{"amount":"5"}`)
	doJSON(t, mux, http.MethodPost, "/api/users/alice/sell", `{"amount":"2"}`)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/users/alice/transactions?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	txs, ok := body["transactions"].([]any)
	require.True(t, ok)
	require.Len(t, txs, 1)
	first, ok := txs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sell", first["kind"])
}
