// Package scheduler runs the periodic broadcast announcer and provides
// the counting semaphore used to bound agent concurrency.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/LoreClaw/LoreClaw/internal/bus"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

// Announcer posts a fixed announcement to a broadcast chat on a fixed
// interval. Announcements ride the bus as internal messages so the agent
// loop forwards them without invoking the model.
type Announcer struct {
	bus      *bus.MessageBus
	history  *timeline.Service
	channel  string
	chatID   string
	message  string
	interval time.Duration
}

// NewAnnouncer creates an Announcer. history may be nil; interval <= 0
// uses a daily cadence.
func NewAnnouncer(b *bus.MessageBus, history *timeline.Service, channel, chatID, message string, interval time.Duration) *Announcer {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Announcer{
		bus:      b,
		history:  history,
		channel:  channel,
		chatID:   chatID,
		message:  message,
		interval: interval,
	}
}

// Run blocks until the context is cancelled, announcing once per interval.
// Returns immediately when no chat or message is configured.
func (a *Announcer) Run(ctx context.Context) {
	if strings.TrimSpace(a.chatID) == "" || strings.TrimSpace(a.message) == "" {
		slog.Info("Announcer idle: no chat or message configured")
		return
	}
	slog.Info("Announcer started", "interval", a.interval, "chat", a.chatID)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Announcer stopped")
			return
		case t := <-ticker.C:
			a.announce(t)
		}
	}
}

func (a *Announcer) announce(now time.Time) {
	a.bus.PublishInbound(&bus.InboundMessage{
		Channel:  a.channel,
		SenderID: "announcer",
		ChatID:   a.chatID,
		Content:  a.message,
		Metadata: map[string]any{
			bus.MetaKeyMessageType: bus.MessageTypeInternal,
			"announcer_tick":       now.Format(time.RFC3339),
		},
		Timestamp: now,
	})
	if a.history != nil {
		_ = a.history.LogEvent(timeline.EventAnnouncement, a.channel, a.chatID, "")
	}
	slog.Info("Announcement queued", "chat", a.chatID)
}
