package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/fetch"
	"github.com/LoreClaw/LoreClaw/internal/knowledge"
	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

var (
	knowledgeFull    bool
	knowledgeTimeout time.Duration
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and refresh the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the mirrored knowledge snapshot",
	RunE:  runKnowledgeShow,
}

var knowledgeRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the source now and update the mirror",
	RunE:  runKnowledgeRefresh,
}

func init() {
	knowledgeShowCmd.Flags().BoolVar(&knowledgeFull, "full", false, "Print the full knowledge text")
	knowledgeRefreshCmd.Flags().DurationVar(&knowledgeTimeout, "timeout", 60*time.Second, "Fetch timeout")
	knowledgeCmd.AddCommand(knowledgeShowCmd, knowledgeRefreshCmd)
}

// openHistory opens the agent's local timeline database, creating the
// data directory on first use.
func openHistory(cfg *config.Config) (*timeline.Service, error) {
	if _, err := config.EnsureDataDir(cfg); err != nil {
		return nil, err
	}
	dbPath, err := config.EventDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return timeline.NewService(dbPath)
}

func runKnowledgeShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	snap, ok := knowledge.LoadMirrored(history)
	if !ok {
		fmt.Println("No knowledge mirrored yet. Run 'loreclaw knowledge refresh'.")
		return nil
	}

	if snap.FetchedAt.IsZero() {
		fmt.Println("Mirrored: fallback text (source has never been fetched)")
	} else {
		fmt.Printf("Mirrored: %d bytes, fetched %s (%s ago)\n",
			len(snap.Content), snap.FetchedAt.Local().Format(time.RFC3339), formatAge(time.Since(snap.FetchedAt)))
	}
	fmt.Printf("Source:   %s\n", cfg.Knowledge.SourceURL)

	if knowledgeFull {
		fmt.Println("\n" + snap.Content)
	} else {
		fmt.Println("\n" + preview(snap.Content, 400))
		fmt.Println("\n(--full prints everything)")
	}
	return nil
}

func runKnowledgeRefresh(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	store := knowledge.NewStore(fetch.NewFetcher(cfg.Knowledge.SourceURL), history)

	ctx, cancel := context.WithTimeout(cmd.Context(), knowledgeTimeout)
	defer cancel()

	fmt.Printf("Fetching %s ...\n", cfg.Knowledge.SourceURL)
	if err := store.Refresh(ctx); err != nil {
		history.LogEvent(timeline.EventRefreshFailed, "cli", "", err.Error())
		return err
	}

	snap := store.Current()
	history.LogEvent(timeline.EventRefreshOK, "cli", "", fmt.Sprintf("%d bytes", len(snap.Content)))
	fmt.Printf("Mirrored %d bytes.\n", len(snap.Content))
	return nil
}

func preview(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
