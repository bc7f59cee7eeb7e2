package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is returned by Controller.Run once the attempt
// budget is spent. Callers should treat it as fatal and exit non-zero.
var ErrRetriesExhausted = errors.New("session retries exhausted")

// Controller acquires and holds the long-poll session, probing before
// each attempt and backing off exponentially between failures. The
// attempt counter is monotonic for the life of the process: a session
// that ran for hours and then hit a conflict spends the same budget as a
// probe that never came clear.
type Controller struct {
	guard *Guard

	// Base is the first backoff delay, Cap bounds the doubling, and
	// MaxAttempts is the total failure budget before Run gives up.
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a Controller with the production backoff
// parameters: 60s base, 300s cap, 10 attempts.
func NewController(guard *Guard) *Controller {
	return &Controller{
		guard:       guard,
		Base:        60 * time.Second,
		Cap:         300 * time.Second,
		MaxAttempts: 10,
		sleep:       sleepCtx,
	}
}

// Run drives the session state machine until the context is cancelled
// (returns nil), the session function returns nil (clean shutdown), or
// the attempt budget is exhausted (returns ErrRetriesExhausted).
//
// Each cycle probes the slot first. A clear probe hands control to the
// session function, which blocks until the session ends; a non-nil
// return from it counts against the same attempt budget as a failed
// probe. After each failure Run sleeps the current delay, then doubles
// it up to Cap.
func (c *Controller) Run(ctx context.Context, session func(context.Context) error) error {
	delay := c.Base
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		switch c.guard.Probe(ctx) {
		case ProbeClear:
			slog.Info("Session slot clear, starting session", "attempts_used", attempts)
			err := session(ctx)
			if err == nil {
				slog.Info("Session ended cleanly")
				return nil
			}
			slog.Warn("Session ended with error", "error", err)
		case ProbeConflict:
			slog.Warn("Session slot held by another consumer")
		case ProbeTransientError:
			// Probe already logged the cause.
		}

		attempts++
		if attempts >= c.MaxAttempts {
			slog.Error("Giving up on session acquisition", "attempts", attempts)
			return fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, attempts)
		}

		slog.Info("Backing off before next attempt", "attempt", attempts, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil
		}
		delay = nextDelay(delay, c.Cap)
	}
}

// nextDelay doubles the delay up to cap.
func nextDelay(delay, cap time.Duration) time.Duration {
	delay *= 2
	if delay > cap {
		return cap
	}
	return delay
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
