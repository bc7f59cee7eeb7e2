package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

// DefaultRefreshInterval is how often the live source is re-fetched.
const DefaultRefreshInterval = 6 * time.Hour

// Refresher re-fetches the knowledge source on a fixed cadence. No
// backoff on failure; the current snapshot stays in place and the next
// tick is the retry.
type Refresher struct {
	store    *Store
	history  *timeline.Service
	interval time.Duration
}

// NewRefresher creates a Refresher. history may be nil; interval <= 0
// uses the default cadence.
func NewRefresher(store *Store, history *timeline.Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{store: store, history: history, interval: interval}
}

// Run blocks until the context is cancelled, refreshing once per
// interval. The first refresh fires one full interval after start; the
// cold-start prime covers the gap.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("Knowledge refresher started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Knowledge refresher stopped")
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	if err := r.store.Refresh(ctx); err != nil {
		slog.Warn("Knowledge refresh failed, keeping current snapshot", "error", err)
		r.record(timeline.EventRefreshFailed, err.Error())
		return
	}
	snap := r.store.Current()
	slog.Info("Knowledge refreshed", "bytes", len(snap.Content))
	r.record(timeline.EventRefreshOK, fmt.Sprintf("%d bytes", len(snap.Content)))
}

func (r *Refresher) record(kind, detail string) {
	if r.history == nil {
		return
	}
	if err := r.history.LogEvent(kind, "refresher", "", detail); err != nil {
		slog.Debug("Refresh event not recorded", "error", err)
	}
}
