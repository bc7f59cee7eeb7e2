package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/LoreClaw/LoreClaw/internal/config"
	"github.com/LoreClaw/LoreClaw/internal/secrets"
	"github.com/LoreClaw/LoreClaw/internal/telegram"
)

// resetOnboardFlags restores the package-level flag state after a test,
// since cobra keeps flag values across Execute calls.
func resetOnboardFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		onboardForce = false
		onboardNonInteractive = false
		onboardToken = ""
		onboardSourceURL = ""
		onboardModel = ""
		onboardOpenAIKey = ""
		onboardAllowFrom = ""
		onboardKeyring = false
		onboardSkipVerify = false
		onboardSkipQR = false
	})
}

func stubVerify(t *testing.T, user *telegram.User, err error) {
	t.Helper()
	orig := onboardVerifyFn
	t.Cleanup(func() { onboardVerifyFn = orig })
	onboardVerifyFn = func(ctx context.Context, token, apiBase string) (*telegram.User, error) {
		return user, err
	}
}

func useTempHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origHome := os.Getenv("LORECLAW_HOME")
	t.Cleanup(func() { os.Setenv("LORECLAW_HOME", origHome) })
	_ = os.Setenv("LORECLAW_HOME", tmpDir)
	return tmpDir
}

func TestOnboardNonInteractiveWritesConfigAndQR(t *testing.T) {
	resetOnboardFlags(t)
	tmpDir := useTempHome(t)
	stubVerify(t, &telegram.User{ID: 99, Username: "lore_bot", FirstName: "Lore"}, nil)

	_, err := runRootCommand(t, "onboard", "--non-interactive",
		"--token", "12345:test-token",
		"--source-url", "https://acme.example/about",
		"--openai-key", "sk-test",
		"--allow-from", "alice, 42")
	if err != nil {
		t.Fatalf("onboard failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, config.ConfigDir, config.ConfigFile))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Channels.Telegram.Token != "12345:test-token" {
		t.Fatalf("token not written, got %q", cfg.Channels.Telegram.Token)
	}
	if cfg.Knowledge.SourceURL != "https://acme.example/about" {
		t.Fatalf("source url not written, got %q", cfg.Knowledge.SourceURL)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Fatalf("api key not written, got %q", cfg.Providers.OpenAI.APIKey)
	}
	if len(cfg.Channels.Telegram.AllowFrom) != 2 || cfg.Channels.Telegram.AllowFrom[0] != "alice" || cfg.Channels.Telegram.AllowFrom[1] != "42" {
		t.Fatalf("allow list not written, got %v", cfg.Channels.Telegram.AllowFrom)
	}

	qr, err := os.Stat(filepath.Join(tmpDir, config.ConfigDir, "bot-link.png"))
	if err != nil {
		t.Fatalf("qr file missing: %v", err)
	}
	if qr.Size() == 0 {
		t.Fatal("qr file is empty")
	}
}

func TestOnboardRefusesOverwriteWithoutForce(t *testing.T) {
	resetOnboardFlags(t)
	tmpDir := useTempHome(t)
	stubVerify(t, &telegram.User{Username: "lore_bot"}, nil)

	cfgDir := filepath.Join(tmpDir, config.ConfigDir)
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, config.ConfigFile), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runRootCommand(t, "onboard", "--non-interactive", "--token", "12345:t")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}

	if _, err := runRootCommand(t, "onboard", "--non-interactive", "--token", "12345:t", "--force", "--skip-qr"); err != nil {
		t.Fatalf("onboard --force failed: %v", err)
	}
}

func TestOnboardRequiresTokenNonInteractive(t *testing.T) {
	resetOnboardFlags(t)
	useTempHome(t)

	_, err := runRootCommand(t, "onboard", "--non-interactive")
	if err == nil || !strings.Contains(err.Error(), "token is required") {
		t.Fatalf("expected token requirement error, got %v", err)
	}
}

func TestOnboardFailsWhenTokenCheckFails(t *testing.T) {
	resetOnboardFlags(t)
	useTempHome(t)
	stubVerify(t, nil, errors.New("unauthorized"))

	_, err := runRootCommand(t, "onboard", "--non-interactive", "--token", "bad-token")
	if err == nil || !strings.Contains(err.Error(), "token check failed") {
		t.Fatalf("expected token check error, got %v", err)
	}
}

func TestOnboardKeyringKeepsTokenOutOfConfig(t *testing.T) {
	keyring.MockInit()
	resetOnboardFlags(t)
	tmpDir := useTempHome(t)
	stubVerify(t, &telegram.User{Username: "lore_bot"}, nil)

	_, err := runRootCommand(t, "onboard", "--non-interactive", "--keyring", "--skip-qr",
		"--token", "12345:secret-token", "--openai-key", "sk-secret")
	if err != nil {
		t.Fatalf("onboard failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, config.ConfigDir, config.ConfigFile))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "secret-token") || strings.Contains(string(data), "sk-secret") {
		t.Fatal("secrets leaked into config.json")
	}

	tok, err := secrets.Resolve(secrets.TelegramToken)
	if err != nil || tok != "12345:secret-token" {
		t.Fatalf("token not in keyring: %q, %v", tok, err)
	}
	key, err := secrets.Resolve(secrets.OpenAIAPIKey)
	if err != nil || key != "sk-secret" {
		t.Fatalf("api key not in keyring: %q, %v", key, err)
	}
}

func TestOnboardSkipVerifySkipsQR(t *testing.T) {
	resetOnboardFlags(t)
	tmpDir := useTempHome(t)

	_, err := runRootCommand(t, "onboard", "--non-interactive", "--skip-verify", "--token", "12345:t")
	if err != nil {
		t.Fatalf("onboard failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, config.ConfigDir, "bot-link.png")); !os.IsNotExist(err) {
		t.Fatalf("expected no qr file without a verified username, stat err = %v", err)
	}
}
