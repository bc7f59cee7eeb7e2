// Package connect owns the exclusive Telegram long-poll session: probing
// whether the slot is free, driving session retries with bounded backoff,
// and forcibly recovering a wedged slot.
package connect

import (
	"context"
	"log/slog"

	"github.com/LoreClaw/LoreClaw/internal/telegram"
)

// API is the slice of the Bot API that session management needs.
// *telegram.Client satisfies it.
type API interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset, limit, timeout int) ([]telegram.Update, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

// ProbeResult classifies one session-slot probe.
type ProbeResult int

const (
	// ProbeClear means the slot answered a minimal poll, so no other
	// consumer holds it.
	ProbeClear ProbeResult = iota
	// ProbeConflict means another getUpdates consumer or webhook holds
	// the slot (Bot API 409).
	ProbeConflict
	// ProbeTransientError covers every other failure: network trouble,
	// 5xx, malformed responses.
	ProbeTransientError
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeClear:
		return "clear"
	case ProbeConflict:
		return "conflict"
	default:
		return "transient-error"
	}
}

// Guard probes whether the single long-poll slot for a token is free.
type Guard struct {
	api API
}

// NewGuard creates a Guard over the given API.
func NewGuard(api API) *Guard {
	return &Guard{api: api}
}

// Probe reports the state of the long-poll slot. It first revokes any
// webhook registration (push and long-poll are mutually exclusive server
// side; revoking with none registered succeeds), then issues a minimal
// one-update short poll and classifies the outcome.
func (g *Guard) Probe(ctx context.Context) ProbeResult {
	if err := g.api.DeleteWebhook(ctx, false); err != nil {
		slog.Warn("Webhook revoke before probe failed", "error", err)
	}

	_, err := g.api.GetUpdates(ctx, 0, 1, 0)
	switch {
	case err == nil:
		return ProbeClear
	case telegram.IsConflict(err):
		return ProbeConflict
	default:
		slog.Warn("Session probe failed", "error", err)
		return ProbeTransientError
	}
}
