package events

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
)

// RelayModule drains the outbox into the log sink in the background.
var RelayModule = fx.Module("events.relay",
	fx.Provide(
		NewRelayConfig,
		fx.Annotate(NewLogSink, fx.As(new(Sink))),
		NewRelay,
	),
	fx.Invoke(runRelay),
)

func runRelay(lc fx.Lifecycle, relay *Relay) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go relay.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
