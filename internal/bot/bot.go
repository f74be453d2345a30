package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// pollTimeoutSec is the getUpdates long-poll window.
const pollTimeoutSec = 30

// errorBackoff is the pause after a failed poll before retrying.
const errorBackoff = 3 * time.Second

// Bot runs the long-poll loop and routes each message to the command
// handlers.
type Bot struct {
	api      *APIClient
	commands *Commands
	logger   *slog.Logger
}

// New creates a Bot.
func New(api *APIClient, commands *Commands, logger *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		commands: commands,
		logger:   logger.With(slog.String("component", "bot")),
	}
}

// Run polls for updates until the context is cancelled. Poll failures are
// logged and retried after a short backoff; a single bad message never stops
// the loop.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "telegram bot started")

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.api.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			b.logger.WarnContext(ctx, "poll failed",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

// handleUpdate replies to one message. The per-user ledger lock inside the
// engine serializes concurrent commands from the same account.
func (b *Bot) handleUpdate(ctx context.Context, u Update) {
	if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
		return
	}
	msg := u.Message
	userID := strconv.FormatInt(msg.From.ID, 10)

	reply := b.commands.Handle(ctx, userID, msg.Text)
	if reply == "" {
		return
	}

	if err := b.api.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		b.logger.WarnContext(ctx, "send reply failed",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", err.Error()),
		)
	}
}
