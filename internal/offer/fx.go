package offer

import (
	"github.com/smallbiznis/escrow/internal/offer/capture"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/offer/reconcile"
	"github.com/smallbiznis/escrow/internal/offer/repository"
	"github.com/smallbiznis/escrow/internal/offer/service"
	"github.com/smallbiznis/escrow/internal/offer/validation"
	"go.uber.org/fx"
)

var Module = fx.Module("offer",
	fx.Provide(repository.Provide),
	fx.Provide(validation.NewEngine),
	fx.Provide(service.NewService),
	fx.Provide(
		func(s *service.Service) offerdomain.Service { return s },
		func(s *service.Service) offerdomain.Transitioner { return s },
		func(s *service.Service) capture.Capturer { return s },
	),
	fx.Provide(reconcile.NewReconciler),
	fx.Provide(func(r *reconcile.Reconciler) offerdomain.Reconciler { return r }),
)

// WorkerModule runs the capture retry loop.
var WorkerModule = capture.Module
