package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/LoreClaw/LoreClaw/internal/bus"
	"github.com/LoreClaw/LoreClaw/internal/telegram"
)

// maxMessageLength is the outbound chunk size, under the Bot API's
// 4096-character hard limit.
const maxMessageLength = 4000

// botAPI is the slice of the Bot API the channel uses.
type botAPI interface {
	DeleteWebhook(ctx context.Context, dropPending bool) error
	GetUpdates(ctx context.Context, offset, limit, timeout int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// TelegramChannel long-polls the Bot API and bridges updates onto the
// message bus. One Run call is one polling session; the session
// controller decides when to start another.
type TelegramChannel struct {
	BaseChannel
	api         botAPI
	pollTimeout int
	retryDelay  time.Duration
}

// NewTelegramChannel creates the channel. pollTimeout is the server-side
// long-poll hold in seconds.
func NewTelegramChannel(b *bus.MessageBus, api botAPI, pollTimeout int) *TelegramChannel {
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: b},
		api:         api,
		pollTimeout: pollTimeout,
		retryDelay:  2 * time.Second,
	}
}

// Name returns the channel name.
func (t *TelegramChannel) Name() string { return "telegram" }

// Run owns one polling session. It first revokes any webhook and drops
// the pending backlog, then long-polls with an advancing offset. A
// conflict ends the session with an error; transient poll failures are
// retried in place after a short pause.
func (t *TelegramChannel) Run(ctx context.Context) error {
	if err := t.api.DeleteWebhook(ctx, true); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("clear webhook: %w", err)
	}

	slog.Info("Telegram polling started", "timeout", t.pollTimeout)
	offset := 0
	for {
		if ctx.Err() != nil {
			slog.Info("Telegram polling stopped")
			return nil
		}

		updates, err := t.api.GetUpdates(ctx, offset, 0, t.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Telegram polling stopped")
				return nil
			}
			if telegram.IsConflict(err) {
				return fmt.Errorf("poll session lost: %w", err)
			}
			slog.Warn("Poll failed, retrying", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(t.retryDelay):
			}
			continue
		}

		for i := range updates {
			u := &updates[i]
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			t.publish(u)
		}
	}
}

// publish turns one update into an inbound bus message. Updates without
// message text (edits, stickers, joins) are skipped.
func (t *TelegramChannel) publish(u *telegram.Update) {
	msg := u.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	in := &bus.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Content:   msg.Text,
		Timestamp: time.Unix(msg.Date, 0),
	}
	if msg.From != nil {
		in.SenderID = strconv.FormatInt(msg.From.ID, 10)
		in.Sender = msg.From.Username
		if in.Sender == "" {
			in.Sender = msg.From.FirstName
		}
	}

	t.Bus.PublishInbound(in)
	slog.Debug("Update received", "chat", in.ChatID, "sender", in.Sender)
}

// Send delivers text to a chat, splitting messages that exceed the Bot
// API length limit.
func (t *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(msg.ChatID), 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat id %q: %w", msg.ChatID, err)
	}

	for _, part := range splitMessage(msg.Content, maxMessageLength) {
		if _, err := t.api.SendMessage(ctx, chatID, part); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// splitMessage slices text into rune-safe chunks of at most limit
// characters.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	parts := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
