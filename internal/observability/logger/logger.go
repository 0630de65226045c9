package logger

import (
	"context"

	"github.com/smallbiznis/escrow/internal/config"
	obsctx "github.com/smallbiznis/escrow/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(registerSync),
)

// New builds the process logger and installs it as the zap global.
func New(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("env", cfg.Environment),
	)
	zap.ReplaceGlobals(log)
	return log, nil
}

func registerSync(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// FromContext returns the global logger annotated with trace and request ids.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(zap.L(), ctx)
}

// WithContext annotates log with the trace, request and actor carried by ctx.
func WithContext(log *zap.Logger, ctx context.Context) *zap.Logger {
	if ctx == nil {
		return log
	}

	fields := make([]zap.Field, 0, 4)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	req := obsctx.RequestFrom(ctx)
	if req.ID != "" {
		fields = append(fields, zap.String("request_id", req.ID))
	}
	if req.ActorID != "" {
		fields = append(fields, zap.String("actor", req.ActorType+":"+req.ActorID))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
