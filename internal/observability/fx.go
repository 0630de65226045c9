package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	"github.com/smallbiznis/escrow/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(tracing.NewConfig),
	fx.Provide(tracing.NewProvider),
	fx.Provide(metrics.NewConfig),
	fx.Provide(func(cfg metrics.Config) (*metrics.OfferMetrics, error) {
		return metrics.NewOfferMetrics(prometheus.DefaultRegisterer, cfg)
	}),
	fx.Provide(func(cfg metrics.Config) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(prometheus.DefaultRegisterer, cfg)
	}),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
