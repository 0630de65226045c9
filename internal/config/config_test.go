package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("GATEWAY_BASE_URL", "https://gateway.test")
	t.Setenv("GATEWAY_API_KEY", "key_live_1234")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec_1234")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultCurrency != "TRY" {
		t.Fatalf("expected default currency TRY, got %q", cfg.DefaultCurrency)
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Fatalf("expected gateway timeout 10s, got %s", cfg.Gateway.Timeout)
	}
	if cfg.CaptureRetry.MaxAttempts != 5 {
		t.Fatalf("expected 5 capture attempts, got %d", cfg.CaptureRetry.MaxAttempts)
	}
	if !cfg.Database.AutoMigrate {
		t.Fatalf("expected auto migrate enabled by default")
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "oracle")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DB_DRIVER") {
		t.Fatalf("expected driver error, got %v", err)
	}
}
