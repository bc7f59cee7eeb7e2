// Package secrets resolves the agent's credentials without keeping them
// in the config file: environment variables first, then the OS keyring.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "loreclaw"

// Known secret names. These double as the keyring account names.
const (
	TelegramToken = "telegram-token"
	OpenAIAPIKey  = "openai-api-key"
)

// ErrNotFound is returned when a secret exists in neither the
// environment nor the keyring.
var ErrNotFound = errors.New("secret not found")

// envVarsFor maps a secret name to the env vars consulted before the keyring.
func envVarsFor(name string) []string {
	switch name {
	case TelegramToken:
		return []string{"LORECLAW_CHANNELS_TELEGRAM_TELEGRAM_TOKEN", "TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"}
	case OpenAIAPIKey:
		return []string{"LORECLAW_OPENAI_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY"}
	default:
		return nil
	}
}

// Resolve returns the named secret. The environment always wins so
// containerized deployments never depend on a keyring daemon.
func Resolve(name string) (string, error) {
	for _, v := range envVarsFor(name) {
		if val := strings.TrimSpace(os.Getenv(v)); val != "" {
			return val, nil
		}
	}
	val, err := keyring.Get(keyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("read keyring: %w", err)
	}
	if strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return val, nil
}

// Store saves the named secret in the OS keyring.
func Store(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("refusing to store empty secret %s", name)
	}
	if err := keyring.Set(keyringService, name, value); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// Forget removes the named secret from the OS keyring. Removing a secret
// that was never stored is not an error.
func Forget(name string) error {
	err := keyring.Delete(keyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete from keyring: %w", err)
	}
	return nil
}
