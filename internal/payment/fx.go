package payment

import (
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	"github.com/smallbiznis/escrow/internal/payment/repository"
	"github.com/smallbiznis/escrow/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(
			func(a gatewaydomain.Adapter) gatewaydomain.Adapter { return a },
			fx.ResultTags(`group:"webhook_adapters"`),
		),
	),
	fx.Provide(service.NewService),
)
