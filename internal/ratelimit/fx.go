package ratelimit

import (
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("ratelimit",
	fx.Provide(func(cfg config.Config, clk clock.Clock) Limiter {
		return NewFixedWindow(cfg.RateLimit.CreateLimit, cfg.RateLimit.Window, clk)
	}),
)
