package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/secrets"
	"github.com/LoreClaw/LoreClaw/internal/telegram"
)

var (
	onboardForce          bool
	onboardNonInteractive bool
	onboardToken          string
	onboardSourceURL      string
	onboardModel          string
	onboardOpenAIKey      string
	onboardAllowFrom      string
	onboardKeyring        bool
	onboardSkipVerify     bool
	onboardSkipQR         bool
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration",
	RunE:  runOnboard,
}

var onboardVerifyFn = func(ctx context.Context, token, apiBase string) (*telegram.User, error) {
	return telegram.NewClient(token, apiBase).GetMe(ctx)
}

func init() {
	onboardCmd.Flags().BoolVarP(&onboardForce, "force", "f", false, "Overwrite existing config")
	onboardCmd.Flags().BoolVar(&onboardNonInteractive, "non-interactive", false, "Run onboarding without prompts")
	onboardCmd.Flags().StringVar(&onboardToken, "token", "", "Telegram bot token (from @BotFather)")
	onboardCmd.Flags().StringVar(&onboardSourceURL, "source-url", "", "Knowledge source URL")
	onboardCmd.Flags().StringVar(&onboardModel, "model", "", "Model name (default: gpt-3.5-turbo)")
	onboardCmd.Flags().StringVar(&onboardOpenAIKey, "openai-key", "", "OpenAI API key")
	onboardCmd.Flags().StringVar(&onboardAllowFrom, "allow-from", "", "Comma-separated allowed sender IDs or usernames (empty admits everyone)")
	onboardCmd.Flags().BoolVar(&onboardKeyring, "keyring", false, "Store secrets in the OS keyring instead of config.json")
	onboardCmd.Flags().BoolVar(&onboardSkipVerify, "skip-verify", false, "Skip the getMe token check")
	onboardCmd.Flags().BoolVar(&onboardSkipQR, "skip-qr", false, "Skip writing the bot link QR code")
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(cfgPath); statErr == nil && !onboardForce {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
	}

	printHeader("🚀 LoreClaw Onboarding")

	cfg := config.DefaultConfig()

	token := strings.TrimSpace(onboardToken)
	if token == "" && !onboardNonInteractive {
		token = promptLine(cmd, "Telegram bot token (from @BotFather)", "")
	}
	if token == "" {
		return errors.New("a telegram bot token is required (pass --token or run interactively)")
	}

	var botUsername string
	if !onboardSkipVerify {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		user, err := onboardVerifyFn(ctx, token, cfg.Channels.Telegram.APIBase)
		if err != nil {
			return fmt.Errorf("token check failed: %w", err)
		}
		botUsername = user.Username
		fmt.Printf("Token OK: @%s\n", botUsername)
	}

	sourceURL := strings.TrimSpace(onboardSourceURL)
	if sourceURL == "" && !onboardNonInteractive {
		sourceURL = promptLine(cmd, "Knowledge source URL", cfg.Knowledge.SourceURL)
	}
	if sourceURL != "" {
		cfg.Knowledge.SourceURL = sourceURL
	} else {
		fmt.Println("No source URL set: the agent will answer from fallback text until one is configured.")
	}

	if model := strings.TrimSpace(onboardModel); model != "" {
		cfg.Model.Name = model
	} else if !onboardNonInteractive {
		cfg.Model.Name = promptLine(cmd, "Model", cfg.Model.Name)
	}

	openAIKey := strings.TrimSpace(onboardOpenAIKey)
	if openAIKey == "" && !onboardNonInteractive {
		openAIKey = promptLine(cmd, "OpenAI API key (empty to configure later)", "")
	}

	if allow := strings.TrimSpace(onboardAllowFrom); allow != "" {
		for _, v := range strings.Split(allow, ",") {
			if v = strings.TrimSpace(v); v != "" {
				cfg.Channels.Telegram.AllowFrom = append(cfg.Channels.Telegram.AllowFrom, v)
			}
		}
	}

	if onboardKeyring {
		if err := secrets.Store(secrets.TelegramToken, token); err != nil {
			return fmt.Errorf("store token in keyring: %w", err)
		}
		fmt.Println("Token stored in the OS keyring.")
		if openAIKey != "" {
			if err := secrets.Store(secrets.OpenAIAPIKey, openAIKey); err != nil {
				return fmt.Errorf("store API key in keyring: %w", err)
			}
			fmt.Println("OpenAI key stored in the OS keyring.")
		}
	} else {
		cfg.Channels.Telegram.Token = token
		cfg.Providers.OpenAI.APIKey = openAIKey
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Config written to %s\n", cfgPath)

	if botUsername != "" && !onboardSkipQR {
		if qrPath, err := writeBotLinkQR(cfg, botUsername); err != nil {
			fmt.Printf("QR code not written: %v\n", err)
		} else {
			fmt.Printf("Bot link QR:  %s (scan to open @%s)\n", qrPath, botUsername)
		}
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  loreclaw knowledge refresh   # fetch the knowledge base")
	fmt.Println("  loreclaw agent               # start answering")
	return nil
}

// writeBotLinkQR renders the t.me deep link as a PNG under the data dir.
func writeBotLinkQR(cfg *config.Config, username string) (string, error) {
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return "", err
	}
	qrPath := filepath.Join(dataDir, "bot-link.png")
	if err := qrcode.WriteFile("https://t.me/"+username, qrcode.Medium, 512, qrPath); err != nil {
		return "", err
	}
	return qrPath, nil
}

func promptLine(cmd *cobra.Command, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}
