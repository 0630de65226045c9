package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration resolved from the environment.
type Config struct {
	Environment     string
	ServiceName     string
	ServiceVersion  string
	HTTPAddr        string
	DefaultCurrency string
	ListingCacheTTL time.Duration

	Database     DatabaseConfig
	Gateway      GatewayConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	CaptureRetry CaptureRetryConfig
	Outbox       OutboxConfig
	Tracing      TracingConfig
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type GatewayConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	WebhookSecret    string
	Timeout          time.Duration
	WebhookTolerance time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type RateLimitConfig struct {
	CreateLimit int
	Window      time.Duration
}

type CaptureRetryConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	UnclaimedGrace time.Duration
}

type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Load reads configuration from the process environment. A .env file in the
// working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:     getEnv("APP_ENV", "development"),
		ServiceName:     getEnv("APP_SERVICE_NAME", "escrow"),
		ServiceVersion:  getEnv("APP_VERSION", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "TRY")),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:    os.Getenv("DB_DSN"),
		},
		Gateway: GatewayConfig{
			Provider:      strings.ToLower(getEnv("GATEWAY_PROVIDER", "http")),
			BaseURL:       os.Getenv("GATEWAY_BASE_URL"),
			APIKey:        os.Getenv("GATEWAY_API_KEY"),
			WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    os.Getenv("JWT_ISSUER"),
		},
		Tracing: TracingConfig{
			ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ExporterProtocol: os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		},
	}

	var err error
	if cfg.Database.AutoMigrate, err = getBool("DB_AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.Tracing.Enabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return Config{}, err
	}
	if cfg.Tracing.SamplingRatio, err = getFloat("OTEL_SAMPLING_RATIO", 0.1); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.Timeout, err = getDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Gateway.WebhookTolerance, err = getDuration("GATEWAY_WEBHOOK_TOLERANCE", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ListingCacheTTL, err = getDuration("LISTING_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.CreateLimit, err = getInt("RATE_LIMIT_CREATE", 10); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Window, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CaptureRetry.BatchSize, err = getInt("CAPTURE_RETRY_BATCH", 25); err != nil {
		return Config{}, err
	}
	if cfg.CaptureRetry.PollInterval, err = getDuration("CAPTURE_RETRY_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CaptureRetry.MaxAttempts, err = getInt("CAPTURE_RETRY_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.CaptureRetry.UnclaimedGrace, err = getDuration("CAPTURE_RETRY_UNCLAIMED_GRACE", 2*time.Minute); err != nil {
		return Config{}, err
	}

	if cfg.Outbox.BatchSize, err = getInt("OUTBOX_RELAY_BATCH", 100); err != nil {
		return Config{}, err
	}
	if cfg.Outbox.PollInterval, err = getDuration("OUTBOX_RELAY_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first missing or malformed required setting.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	required := []struct {
		key   string
		value string
	}{
		{"DB_DSN", c.Database.DSN},
		{"GATEWAY_BASE_URL", c.Gateway.BaseURL},
		{"GATEWAY_API_KEY", c.Gateway.APIKey},
		{"GATEWAY_WEBHOOK_SECRET", c.Gateway.WebhookSecret},
		{"JWT_SECRET", c.Auth.JWTSecret},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			return fmt.Errorf("config: %s is required", item.key)
		}
	}
	if len(c.DefaultCurrency) != 3 {
		return errors.New("config: DEFAULT_CURRENCY must be an ISO 4217 code")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return value, nil
}
