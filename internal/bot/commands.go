package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/domain"
	"github.com/goldchainlabs/goldbot/internal/ledger"
	"github.com/goldchainlabs/goldbot/internal/service"
)

const helpText = `*GoldBot commands*
/price - current vGold/ALGO rate
/balance - your ALGO and vGold balances
/buy <amount> - buy vGold with ALGO
/sell <amount> - sell vGold for ALGO
/lend <amount> <days> - lend vGold for a term
/claim <position> - claim a matured lend
/borrow <amount> <days> - borrow vGold against ALGO collateral
/repay <position> - repay a loan
/positions - your open lends and loans
/history [days] - recent transactions
/connect <address> [wallet] - link a wallet address
/wallet - show your linked wallet`

// Commands maps chat commands onto the ledger engine and price service.
type Commands struct {
	engine   *ledger.Engine
	prices   *service.PriceService
	sessions domain.SessionStore
	logger   *slog.Logger
}

// NewCommands creates the command handler set.
func NewCommands(engine *ledger.Engine, prices *service.PriceService, sessions domain.SessionStore, logger *slog.Logger) *Commands {
	return &Commands{
		engine:   engine,
		prices:   prices,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "commands")),
	}
}

// Handle parses one message and returns the reply text. Non-commands return
// an empty string and get no reply.
func (c *Commands) Handle(ctx context.Context, userID, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	// Strip a trailing @botname from group chats.
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/start":
		return "Welcome to GoldBot. You start with 100 simulated ALGO.\n" + helpText
	case "/help":
		return helpText
	case "/price":
		return c.price(ctx)
	case "/balance":
		return c.balance(ctx, userID)
	case "/buy":
		return c.trade(ctx, userID, args, "buy")
	case "/sell":
		return c.trade(ctx, userID, args, "sell")
	case "/lend":
		return c.lend(ctx, userID, args)
	case "/claim":
		return c.claim(ctx, userID, args)
	case "/borrow":
		return c.borrow(ctx, userID, args)
	case "/repay":
		return c.repay(ctx, userID, args)
	case "/positions":
		return c.positions(ctx, userID)
	case "/history":
		return c.history(ctx, userID, args)
	case "/connect":
		return c.connect(ctx, userID, args)
	case "/wallet":
		return c.wallet(ctx, userID)
	default:
		return "Unknown command. Try /help."
	}
}

func (c *Commands) price(ctx context.Context) string {
	price := c.engine.CurrentPrice(ctx)
	reply := fmt.Sprintf("1 vGold = %s ALGO", price)

	stats, err := c.prices.Analytics(ctx, 24*time.Hour)
	if err == nil && stats.Samples > 1 {
		reply += fmt.Sprintf("\n24h: %s%% (low %s, high %s)",
			stats.ChangePct.StringFixed(2), stats.Min, stats.Max)
	}
	return reply
}

func (c *Commands) balance(ctx context.Context, userID string) string {
	l, err := c.engine.Portfolio(ctx, userID)
	if err != nil {
		return c.errorReply(ctx, err)
	}
	price := c.engine.CurrentPrice(ctx)
	total := l.CollateralBalance.Add(l.AssetBalance.Mul(price))
	return fmt.Sprintf("ALGO: %s\nvGold: %s\nTotal value: %s ALGO",
		l.CollateralBalance, l.AssetBalance, total)
}

func (c *Commands) trade(ctx context.Context, userID string, args []string, kind string) string {
	amount, err := parseAmount(args, 0)
	if err != nil {
		return fmt.Sprintf("Usage: /%s <amount>", kind)
	}

	var view domain.BalanceView
	if kind == "buy" {
		view, err = c.engine.BuyAsset(ctx, userID, amount)
	} else {
		view, err = c.engine.SellAsset(ctx, userID, amount)
	}
	if err != nil {
		return c.errorReply(ctx, err)
	}

	verb := "Bought"
	if kind == "sell" {
		verb = "Sold"
	}
	return fmt.Sprintf("%s %s vGold at %s.\nALGO: %s | vGold: %s",
		verb, amount, view.Price, view.CollateralBalance, view.AssetBalance)
}

func (c *Commands) lend(ctx context.Context, userID string, args []string) string {
	amount, err := parseAmount(args, 0)
	if err != nil {
		return "Usage: /lend <amount> <days>"
	}
	days, err := parseDays(args, 1)
	if err != nil {
		return "Usage: /lend <amount> <days>"
	}

	pos, err := c.engine.OpenLend(ctx, userID, amount, days)
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("Lent %s vGold for %d days at %s%% interest.\nMatures %s\nPosition: `%s`",
		pos.Principal, days, ratePct(pos.InterestRate), pos.MaturesAt.Format("2006-01-02"), pos.ID)
}

func (c *Commands) claim(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /claim <position>"
	}
	res, err := c.engine.ClaimLend(ctx, userID, args[0])
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("Claimed %s vGold (%s interest).\nvGold balance: %s",
		res.Payout, res.Interest, res.Balances.AssetBalance)
}

func (c *Commands) borrow(ctx context.Context, userID string, args []string) string {
	amount, err := parseAmount(args, 0)
	if err != nil {
		return "Usage: /borrow <amount> <days>"
	}
	days, err := parseDays(args, 1)
	if err != nil {
		return "Usage: /borrow <amount> <days>"
	}

	pos, err := c.engine.OpenBorrow(ctx, userID, amount, days)
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("Borrowed %s vGold for %d days at %s%% interest.\nCollateral locked: %s ALGO\nDue %s\nPosition: `%s`",
		pos.Principal, days, ratePct(pos.InterestRate), pos.CollateralLocked,
		pos.DueAt.Format("2006-01-02"), pos.ID)
}

func (c *Commands) repay(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /repay <position>"
	}
	res, err := c.engine.RepayBorrow(ctx, userID, args[0])
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("Repaid %s vGold, released %s ALGO collateral.\nALGO: %s | vGold: %s",
		res.Repayment, res.CollateralReleased,
		res.Balances.CollateralBalance, res.Balances.AssetBalance)
}

func (c *Commands) positions(ctx context.Context, userID string) string {
	l, err := c.engine.Portfolio(ctx, userID)
	if err != nil {
		return c.errorReply(ctx, err)
	}

	var sb strings.Builder
	for _, p := range l.LendPositions {
		if p.Status != domain.LendStatusActive {
			continue
		}
		fmt.Fprintf(&sb, "Lend `%s`: %s vGold at %s%%, matures %s\n",
			p.ID, p.Principal, ratePct(p.InterestRate), p.MaturesAt.Format("2006-01-02"))
	}
	for _, p := range l.BorrowPositions {
		if p.Status != domain.BorrowStatusActive {
			continue
		}
		fmt.Fprintf(&sb, "Borrow `%s`: %s vGold at %s%%, %s ALGO locked, due %s\n",
			p.ID, p.Principal, ratePct(p.InterestRate), p.CollateralLocked, p.DueAt.Format("2006-01-02"))
	}
	if sb.Len() == 0 {
		return "No open positions."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) history(ctx context.Context, userID string, args []string) string {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	txs, err := c.engine.Transactions(ctx, userID, domain.ListOpts{Limit: limit})
	if err != nil {
		return c.errorReply(ctx, err)
	}
	if len(txs) == 0 {
		return "No transactions yet."
	}

	var sb strings.Builder
	for _, tx := range txs {
		fmt.Fprintf(&sb, "%s %s: %s\n",
			tx.CreatedAt.Format("01-02 15:04"), tx.Kind, tx.Note)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) connect(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /connect <address> [wallet]"
	}
	walletType := "pera"
	if len(args) > 1 {
		walletType = strings.ToLower(args[1])
	}

	err := c.sessions.Upsert(ctx, domain.WalletSession{
		UserID:     userID,
		Address:    args[0],
		WalletType: walletType,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("Linked %s wallet `%s`.", walletType, args[0])
}

func (c *Commands) wallet(ctx context.Context, userID string) string {
	sess, err := c.sessions.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "No wallet linked. Use /connect <address>."
	}
	if err != nil {
		return c.errorReply(ctx, err)
	}
	return fmt.Sprintf("%s wallet `%s`, linked %s.",
		sess.WalletType, sess.Address, sess.CreatedAt.Format("2006-01-02"))
}

// errorReply maps engine errors onto user-facing text. Unexpected errors are
// logged and answered generically.
func (c *Commands) errorReply(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Amount must be a positive number."
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Not enough ALGO for that."
	case errors.Is(err, domain.ErrInsufficientAsset):
		return "Not enough vGold for that."
	case errors.Is(err, domain.ErrInsufficientCollateral):
		return "Not enough free ALGO collateral for that loan."
	case errors.Is(err, domain.ErrPositionNotFound):
		return "No open position with that ID."
	case errors.Is(err, domain.ErrNotMatured):
		return "That position has not matured yet."
	case errors.Is(err, domain.ErrLedgerBusy):
		return "Your ledger is busy, try again in a moment."
	case errors.Is(err, domain.ErrPersistence):
		return "Could not save that, nothing was changed. Please try again."
	default:
		c.logger.ErrorContext(ctx, "command failed",
			slog.String("error", err.Error()),
		)
		return "Something went wrong, please try again."
	}
}

func parseAmount(args []string, i int) (decimal.Decimal, error) {
	if len(args) <= i {
		return decimal.Zero, fmt.Errorf("bot: missing amount")
	}
	amount, err := decimal.NewFromString(args[i])
	if err != nil {
		return decimal.Zero, fmt.Errorf("bot: parse amount %q: %w", args[i], err)
	}
	return amount, nil
}

func parseDays(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("bot: missing days")
	}
	days, err := strconv.Atoi(args[i])
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("bot: parse days %q", args[i])
	}
	return days, nil
}

func ratePct(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(1)
}
