package connect

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options tunes the remediation sequence. The defaults match what the
// Bot API needs in practice: webhook state is cached in layers server
// side, so a single delete is not always enough.
type Options struct {
	ClearRounds   int
	ClearDelay    time.Duration
	ProbeAttempts int
	ProbeDelay    time.Duration
}

// DefaultOptions returns the production remediation parameters.
func DefaultOptions() Options {
	return Options{
		ClearRounds:   5,
		ClearDelay:    1 * time.Second,
		ProbeAttempts: 10,
		ProbeDelay:    3 * time.Second,
	}
}

// Check is one step outcome in a remediation report.
type Check struct {
	Name   string
	Status string // "PASS", "WARN", "FAIL"
	Detail string
}

// Report summarizes a remediation run.
type Report struct {
	Checks         []Check
	BotUsername    string
	WebhookRounds  int
	DrainedUpdates int
	ProbesUsed     int
	Clear          bool
}

func (r *Report) add(name, status, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Detail: detail})
}

// Remediate forcibly frees the long-poll slot for a token: verify the
// token, strip any webhook registration several times over, discard the
// pending update backlog, then probe until the slot reports clear.
//
// The returned Report is always non-nil. A non-nil error means the
// sequence could not even start (bad token) or was cancelled; a report
// with Clear=false means the sequence ran but the slot never came free.
func Remediate(ctx context.Context, api API, opts Options) (*Report, error) {
	report := &Report{}

	user, err := api.GetMe(ctx)
	if err != nil {
		report.add("token", "FAIL", err.Error())
		return report, fmt.Errorf("verify token: %w", err)
	}
	report.BotUsername = user.Username
	report.add("token", "PASS", "@"+user.Username)

	for i := 0; i < opts.ClearRounds; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, opts.ClearDelay); err != nil {
				return report, err
			}
		}
		if err := api.DeleteWebhook(ctx, true); err != nil {
			slog.Warn("Webhook delete round failed", "round", i+1, "error", err)
			continue
		}
		report.WebhookRounds++
	}
	if report.WebhookRounds == opts.ClearRounds {
		report.add("webhook", "PASS", fmt.Sprintf("revoked %d/%d rounds", report.WebhookRounds, opts.ClearRounds))
	} else {
		report.add("webhook", "WARN", fmt.Sprintf("revoked %d/%d rounds", report.WebhookRounds, opts.ClearRounds))
	}

	updates, err := api.GetUpdates(ctx, -1, 0, 0)
	if err != nil {
		slog.Warn("Backlog drain failed", "error", err)
		report.add("drain", "WARN", err.Error())
	} else {
		report.DrainedUpdates = len(updates)
		report.add("drain", "PASS", fmt.Sprintf("confirmed past %d pending updates", len(updates)))
	}

	guard := NewGuard(api)
	for i := 1; i <= opts.ProbeAttempts; i++ {
		report.ProbesUsed = i
		if guard.Probe(ctx) == ProbeClear {
			report.Clear = true
			break
		}
		if i < opts.ProbeAttempts {
			if err := sleepCtx(ctx, opts.ProbeDelay); err != nil {
				return report, err
			}
		}
	}
	if report.Clear {
		report.add("probe", "PASS", fmt.Sprintf("slot clear after %d probe(s)", report.ProbesUsed))
	} else {
		report.add("probe", "FAIL", fmt.Sprintf("slot still held after %d probes", report.ProbesUsed))
	}

	return report, nil
}
