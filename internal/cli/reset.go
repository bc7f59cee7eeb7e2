package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/connect"
	"github.com/LoreClaw/LoreClaw/internal/telegram"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

var resetTimeout time.Duration

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forcibly free the Telegram long-poll slot",
	Long: "Verifies the token, strips any webhook registration, discards the pending\n" +
		"update backlog, and probes until the long-poll slot reports clear.",
	RunE: runReset,
}

var resetRemediateFn = connect.Remediate

func init() {
	resetCmd.Flags().DurationVar(&resetTimeout, "timeout", 2*time.Minute, "Overall remediation timeout")
}

func runReset(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	overlaySecrets(cfg)
	token := cfg.Channels.Telegram.Token
	if token == "" {
		return errors.New("no telegram token configured (run 'loreclaw onboard')")
	}

	printHeader("🧹 LoreClaw Reset")

	ctx, cancel := context.WithTimeout(cmd.Context(), resetTimeout)
	defer cancel()

	client := telegram.NewClient(token, cfg.Channels.Telegram.APIBase)
	report, err := resetRemediateFn(ctx, client, connect.DefaultOptions())
	printReport(cmd.OutOrStdout(), report)

	if history, hErr := openHistory(cfg); hErr == nil {
		history.LogEvent(timeline.EventRemediation, "cli", "",
			fmt.Sprintf("clear=%v probes=%d", report.Clear, report.ProbesUsed))
		history.Close()
	}

	if err != nil {
		return err
	}
	if !report.Clear {
		return errors.New("slot still held, run reset again in a minute or stop the other consumer")
	}
	fmt.Println(color.GreenString("\nSlot is clear. Start the agent with 'loreclaw agent'."))
	return nil
}

func printReport(w io.Writer, r *connect.Report) {
	if r == nil {
		return
	}
	for _, c := range r.Checks {
		var tag string
		switch c.Status {
		case "PASS":
			tag = color.GreenString("[PASS]")
		case "WARN":
			tag = color.YellowString("[WARN]")
		default:
			tag = color.RedString("[FAIL]")
		}
		fmt.Fprintf(w, "%s %-8s %s\n", tag, c.Name, c.Detail)
	}
}
