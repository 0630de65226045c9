package audit

import (
	"github.com/smallbiznis/escrow/internal/audit/repository"
	"github.com/smallbiznis/escrow/internal/audit/service"
	"go.uber.org/fx"
)

// Module provides the audit trail writer shared by the offer service, the
// reconciler and the history endpoint.
var Module = fx.Module("audit",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
