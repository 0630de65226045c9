package gateway

import (
	"github.com/smallbiznis/escrow/internal/config"
	"github.com/smallbiznis/escrow/internal/gateway/adapters"
	"github.com/smallbiznis/escrow/internal/gateway/adapters/httpgw"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(httpgw.NewFactory())
	}),
	fx.Provide(NewAdapter),
	fx.Provide(func(a gatewaydomain.Adapter) gatewaydomain.Gateway { return a }),
)

// NewAdapter builds the adapter for the configured provider.
func NewAdapter(cfg config.Config, registry *adapters.Registry) (gatewaydomain.Adapter, error) {
	return registry.NewAdapter(cfg.Gateway.Provider, gatewaydomain.AdapterConfig{
		Provider:         cfg.Gateway.Provider,
		BaseURL:          cfg.Gateway.BaseURL,
		APIKey:           cfg.Gateway.APIKey,
		WebhookSecret:    cfg.Gateway.WebhookSecret,
		Timeout:          cfg.Gateway.Timeout,
		WebhookTolerance: cfg.Gateway.WebhookTolerance,
	})
}
