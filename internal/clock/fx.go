package clock

import "go.uber.org/fx"

// Module binds the wall clock; tests substitute their own Clock with fx.Replace.
var Module = fx.Module("clock",
	fx.Provide(
		fx.Annotate(
			func() SystemClock { return SystemClock{} },
			fx.As(new(Clock)),
		),
	),
)
