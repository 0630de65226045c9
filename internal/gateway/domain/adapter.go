package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway moves money at the payment processor. Every call must be safe to
// retry with the same idempotency key.
type Gateway interface {
	Provider() string
	CreatePreAuth(ctx context.Context, req PreAuthRequest) (*PreAuth, error)
	// Capture only requests fund release; confirmation arrives by webhook.
	Capture(ctx context.Context, req CaptureRequest) error
	Void(ctx context.Context, req VoidRequest) error
}

// WebhookAdapter authenticates and normalizes inbound processor callbacks.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

// Adapter is a provider integration covering both directions.
type Adapter interface {
	Gateway
	WebhookAdapter
}

type AdapterConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	WebhookSecret    string
	Timeout          time.Duration
	WebhookTolerance time.Duration
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (Adapter, error)
}

type PreAuthRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PreAuth struct {
	Token         string
	TransactionID string
}

type CaptureRequest struct {
	Token          string
	TransactionID  string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

type VoidRequest struct {
	Token          string
	TransactionID  string
	IdempotencyKey string
}
