package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/LoreClaw/LoreClaw/internal/cli.version=1.2.3"
	version = "1.3.0"
	logo    = "\n" +
		"  _                          ____  _\n" +
		" | |      ___  _ __  ___    / ___|| | __ ___      __\n" +
		" | |     / _ \\| '__|/ _ \\  | |    | |/ _` \\ \\ /\\ / /\n" +
		" | |___ | (_) | |  |  __/  | |___ | | (_| |\\ V  V /\n" +
		" |_____| \\___/|_|   \\___|   \\____||_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "loreclaw",
	Short: "LoreClaw - Knowledge-grounded Telegram assistant",
	Long:  color.CyanString(logo) + "\nA Telegram support assistant that answers every question from a curated knowledge base.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(onboardCmd)
}
