package bot

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldchainlabs/goldbot/internal/ledger"
	"github.com/goldchainlabs/goldbot/internal/service"
	"github.com/goldchainlabs/goldbot/internal/store/memory"
)

type staticOracle struct{}

func (staticOracle) GetPrice(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.05), nil
}

func newTestCommands(t *testing.T) *Commands {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	cfg := ledger.DefaultConfig()
	cfg.LockWait = 100 * time.Millisecond
	eng := ledger.NewEngine(memory.NewLedgerStore(), staticOracle{}, ledger.NewKeyMutex(), cfg, logger)

	prices := service.NewPriceService(staticOracle{}, nil, memory.NewPriceHistoryStore(), nil, time.Minute, logger)
	return NewCommands(eng, prices, memory.NewSessionStore(), logger)
}

func TestHandleIgnoresNonCommands(t *testing.T) {
	c := newTestCommands(t)
	assert.Empty(t, c.Handle(context.Background(), "1", "hello there"))
	assert.Empty(t, c.Handle(context.Background(), "1", ""))
}

func TestHandleUnknownCommand(t *testing.T) {
	c := newTestCommands(t)
	assert.Contains(t, c.Handle(context.Background(), "1", "/frobnicate"), "Unknown command")
}

func TestBuyAndBalance(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	reply := c.Handle(ctx, "1", "/buy 200")
	assert.Contains(t, reply, "Bought 200 vGold")
	assert.Contains(t, reply, "ALGO: 90")

	reply = c.Handle(ctx, "1", "/balance")
	assert.Contains(t, reply, "ALGO: 90")
	assert.Contains(t, reply, "vGold: 200")
}

func TestBuyBadAmount(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	assert.Contains(t, c.Handle(ctx, "1", "/buy"), "Usage")
	assert.Contains(t, c.Handle(ctx, "1", "/buy potato"), "Usage")
	assert.Contains(t, c.Handle(ctx, "1", "/buy -5"), "positive number")
}

func TestBuyInsufficientFunds(t *testing.T) {
	c := newTestCommands(t)
	reply := c.Handle(context.Background(), "1", "/buy 99999")
	assert.Contains(t, reply, "Not enough ALGO")
}

func TestLendFlow(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	c.Handle(ctx, "1", "/buy 200")
	reply := c.Handle(ctx, "1", "/lend 50 30")
	assert.Contains(t, reply, "Lent 50 vGold for 30 days at 4.0%")

	reply = c.Handle(ctx, "1", "/positions")
	assert.Contains(t, reply, "Lend")
	assert.Contains(t, reply, "50 vGold")

	// Claiming before maturity is refused politely.
	l, err := c.engine.Portfolio(ctx, "1")
	require.NoError(t, err)
	require.Len(t, l.LendPositions, 1)
	reply = c.Handle(ctx, "1", "/claim "+l.LendPositions[0].ID)
	assert.Contains(t, reply, "not matured")
}

func TestBorrowRepayFlow(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	c.Handle(ctx, "1", "/buy 200")
	reply := c.Handle(ctx, "1", "/borrow 50 30")
	assert.Contains(t, reply, "Borrowed 50 vGold")
	assert.Contains(t, reply, "Collateral locked: 3.75 ALGO")

	l, err := c.engine.Portfolio(ctx, "1")
	require.NoError(t, err)
	require.Len(t, l.BorrowPositions, 1)

	reply = c.Handle(ctx, "1", "/repay "+l.BorrowPositions[0].ID)
	assert.Contains(t, reply, "Repaid 53 vGold")
	assert.Contains(t, reply, "released 3.75 ALGO")

	reply = c.Handle(ctx, "1", "/repay "+l.BorrowPositions[0].ID)
	assert.Contains(t, reply, "No open position")
}

func TestHistory(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	assert.Contains(t, c.Handle(ctx, "1", "/history"), "No transactions")

	c.Handle(ctx, "1", "/buy 10")
	c.Handle(ctx, "1", "/sell 5")
	reply := c.Handle(ctx, "1", "/history")
	assert.Contains(t, reply, "Buy 10 vGold")
	assert.Contains(t, reply, "Sell 5 vGold")
}

func TestConnectAndWallet(t *testing.T) {
	c := newTestCommands(t)
	ctx := context.Background()

	assert.Contains(t, c.Handle(ctx, "1", "/wallet"), "No wallet linked")

	reply := c.Handle(ctx, "1", "/connect ALGOADDR123 defly")
	assert.Contains(t, reply, "Linked defly wallet")

	reply = c.Handle(ctx, "1", "/wallet")
	assert.Contains(t, reply, "ALGOADDR123")
}

func TestCommandWithBotSuffix(t *testing.T) {
	c := newTestCommands(t)
	reply := c.Handle(context.Background(), "1", "/balance@goldbot")
	assert.Contains(t, reply, "ALGO: 100")
}
