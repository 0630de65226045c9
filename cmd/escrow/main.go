package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/audit"
	"github.com/smallbiznis/escrow/internal/auth"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	"github.com/smallbiznis/escrow/internal/events"
	"github.com/smallbiznis/escrow/internal/gateway"
	"github.com/smallbiznis/escrow/internal/listing"
	"github.com/smallbiznis/escrow/internal/migration"
	"github.com/smallbiznis/escrow/internal/observability"
	"github.com/smallbiznis/escrow/internal/offer"
	"github.com/smallbiznis/escrow/internal/payment"
	"github.com/smallbiznis/escrow/internal/ratelimit"
	"github.com/smallbiznis/escrow/internal/server"
	"github.com/smallbiznis/escrow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		events.Module,
		events.RelayModule,
		audit.Module,
		listing.Module,
		gateway.Module,
		offer.Module,
		offer.WorkerModule,
		payment.Module,

		auth.Module,
		ratelimit.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
