package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/connect"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ LoreClaw Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 LoreClaw Status")
		fmt.Printf("Version: %s\n", version)

		if cfgPath, err := config.ConfigPath(); err == nil {
			if _, statErr := os.Stat(cfgPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + cfgPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (run 'loreclaw onboard' first)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Unreadable (%v)\n", err)
			return
		}
		overlaySecrets(cfg)

		if cfg.Channels.Telegram.Token != "" {
			fmt.Println("Token:   ✓ Configured")
		} else {
			fmt.Println("Token:   ✗ Missing")
		}

		if lockPath, err := config.LockPath(cfg); err == nil {
			lock := connect.NewInstanceLock(lockPath)
			if held, lockErr := lock.TryLock(); lockErr == nil && held {
				lock.Unlock()
				fmt.Println("Agent:   ○ Not running")
			} else {
				fmt.Println("Agent:   ● Running")
			}
		}

		dbPath, err := config.EventDBPath(cfg)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(dbPath); statErr != nil {
			fmt.Println("Knowledge: ✗ No local history yet")
			return
		}
		history, err := timeline.NewService(dbPath)
		if err != nil {
			fmt.Printf("Knowledge: ✗ History unreadable (%v)\n", err)
			return
		}
		defer history.Close()

		if snap, ok := knowledge.LoadMirrored(history); !ok {
			fmt.Println("Knowledge: ✗ Nothing mirrored yet")
		} else if snap.FetchedAt.IsZero() {
			fmt.Println("Knowledge: ⚠ Fallback text mirrored (source never fetched)")
		} else {
			fmt.Printf("Knowledge: ✓ %d bytes, fetched %s ago\n",
				len(snap.Content), formatAge(time.Since(snap.FetchedAt)))
		}

		events, err := history.Events(timeline.FilterArgs{Limit: 5})
		if err == nil && len(events) > 0 {
			fmt.Println("\nRecent events:")
			for _, e := range events {
				line := fmt.Sprintf("  %s  %-24s %s",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Detail)
				fmt.Println(strings.TrimRight(line, " "))
			}
		}
	},
}

// formatAge renders a duration the way a human reads an age: seconds
// under a minute, minutes under an hour, then hours and days.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
