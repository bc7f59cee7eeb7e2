// Package alerts posts operator notifications to Slack. Alerts cover
// the conditions a human should look at: fallback knowledge in use,
// session acquisition given up, remediation outcomes.
package alerts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

const postTimeout = 15 * time.Second

type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts alert messages to a fixed Slack channel. A nil
// Notifier is valid and discards everything, so call sites can alert
// unconditionally.
type Notifier struct {
	api     slackPoster
	channel string
}

// NewNotifier returns a Notifier, or nil when token or channel is
// blank (alerts disabled).
func NewNotifier(token, channel string) *Notifier {
	token = strings.TrimSpace(token)
	channel = strings.TrimSpace(channel)
	if token == "" || channel == "" {
		return nil
	}
	return &Notifier{
		api:     slack.New(token, slack.OptionHTTPClient(&http.Client{Timeout: postTimeout})),
		channel: channel,
	}
}

// Notify posts text to the alert channel. Failures are logged, never
// returned: an unreachable Slack must not take the agent down with it.
// A single retry honors Slack's rate-limit hint.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))

	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		select {
		case <-time.After(rle.RetryAfter):
		case <-ctx.Done():
			slog.Warn("Slack alert failed", "channel", n.channel, "error", err)
			return
		}
		_, _, err = n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	}

	if err != nil {
		slog.Warn("Slack alert failed", "channel", n.channel, "error", err)
		return
	}
	slog.Debug("Slack alert sent", "channel", n.channel)
}
