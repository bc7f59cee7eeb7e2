package secrets

import (
	"errors"
	"os"
	"testing"

	"github.com/zalando/go-keyring"
)

func clearSecretEnv(t *testing.T, name string) {
	t.Helper()
	for _, v := range envVarsFor(name) {
		orig, had := os.LookupEnv(v)
		_ = os.Unsetenv(v)
		if had {
			t.Cleanup(func() { os.Setenv(v, orig) })
		}
	}
}

func TestResolvePrefersEnvironment(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t, TelegramToken)

	if err := Store(TelegramToken, "from-keyring"); err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Setenv("TELEGRAM_TOKEN", "from-env")

	got, err := Resolve(TelegramToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("expected env value to win, got %q", got)
	}
}

func TestResolveFallsBackToKeyring(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t, OpenAIAPIKey)

	if err := Store(OpenAIAPIKey, "sk-stored"); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := Resolve(OpenAIAPIKey)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "sk-stored" {
		t.Fatalf("expected keyring value, got %q", got)
	}
}

func TestResolveMissingReturnsNotFound(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t, TelegramToken)

	_, err := Resolve(TelegramToken)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsEmptyValue(t *testing.T) {
	keyring.MockInit()

	if err := Store(TelegramToken, "   "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestForgetRemovesStoredSecret(t *testing.T) {
	keyring.MockInit()
	clearSecretEnv(t, OpenAIAPIKey)

	if err := Store(OpenAIAPIKey, "sk-temp"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := Forget(OpenAIAPIKey); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := Resolve(OpenAIAPIKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after forget, got %v", err)
	}

	// Forgetting again is a no-op.
	if err := Forget(OpenAIAPIKey); err != nil {
		t.Fatalf("second forget: %v", err)
	}
}
