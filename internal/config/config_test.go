package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesPaystackSecretKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PAYSTACK_WEBHOOK_SECRET")
	setEnvWithCleanup(t, "PAYSTACK_SECRET_KEY", "sk_test_alias_only")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaystackWebhookSecret != "sk_test_alias_only" {
		t.Fatalf("expected PaystackWebhookSecret from alias env var, got %q", cfg.PaystackWebhookSecret)
	}
}

func TestLoadConfig_WebhookSecretTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PAYSTACK_WEBHOOK_SECRET", "sk_test_primary")
	setEnvWithCleanup(t, "PAYSTACK_SECRET_KEY", "sk_test_alias")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PaystackWebhookSecret != "sk_test_primary" {
		t.Fatalf("expected PaystackWebhookSecret to prioritize PAYSTACK_WEBHOOK_SECRET, got %q", cfg.PaystackWebhookSecret)
	}
}

func TestLoadConfig_SyncDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SYNC_MAX_ATTEMPTS")
	unsetEnvWithCleanup(t, "SYNC_BACKOFF_SECONDS")
	unsetEnvWithCleanup(t, "SYNC_BATCH_SIZE")
	unsetEnvWithCleanup(t, "SYNC_POLL_INTERVAL_MS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SyncMaxAttempts != 4 {
		t.Fatalf("expected default SyncMaxAttempts 4, got %d", cfg.SyncMaxAttempts)
	}
	if cfg.SyncBackoffSeconds != 5 {
		t.Fatalf("expected default SyncBackoffSeconds 5, got %d", cfg.SyncBackoffSeconds)
	}
	if cfg.SyncBatchSize != 50 {
		t.Fatalf("expected default SyncBatchSize 50, got %d", cfg.SyncBatchSize)
	}
	if cfg.SyncPollIntervalMs != 2000 {
		t.Fatalf("expected default SyncPollIntervalMs 2000, got %d", cfg.SyncPollIntervalMs)
	}
}

func TestLoadConfig_LedgerKeyFallsBackToInternalKey(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "LEDGER_SERVICE_INTERNAL_API_KEY")
	setEnvWithCleanup(t, "INTERNAL_API_KEY", "shared-internal-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LedgerInternalAPIKey != "shared-internal-key" {
		t.Fatalf("expected ledger key to fall back to internal key, got %q", cfg.LedgerInternalAPIKey)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
