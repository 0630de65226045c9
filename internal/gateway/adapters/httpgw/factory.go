package httpgw

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	"github.com/smallbiznis/escrow/internal/observability/tracing"
)

const ProviderName = "http"

type Factory struct {
	client *http.Client
	now    func() time.Time
}

func NewFactory() *Factory {
	return &Factory{
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (f *Factory) Provider() string { return ProviderName }

func (f *Factory) NewAdapter(cfg gatewaydomain.AdapterConfig) (gatewaydomain.Adapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	if _, err := url.Parse(base); err != nil {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, gatewaydomain.ErrInvalidConfig
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}

	client := f.client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Adapter{
		provider:  cfg.Provider,
		baseURL:   base,
		apiKey:    cfg.APIKey,
		secret:    []byte(cfg.WebhookSecret),
		tolerance: tolerance,
		client:    tracing.WrapHTTPClient(client),
		now:       f.now,
	}, nil
}
