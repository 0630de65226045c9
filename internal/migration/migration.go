package migration

import (
	"fmt"

	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	"github.com/smallbiznis/escrow/internal/config"
	"github.com/smallbiznis/escrow/internal/events"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	listingdomain "github.com/smallbiznis/escrow/internal/listing/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.Database.AutoMigrate {
			log.Info("schema migration disabled")
			return nil
		}
		return RunMigrations(conn)
	}),
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&listingdomain.Listing{},
		&offerdomain.Offer{},
		&offerdomain.Anomaly{},
		&events.OfferEvent{},
		&auditdomain.AuditLog{},
		&gatewaydomain.EventRecord{},
	}
}

// RunMigrations brings the schema up to date. It only adds tables, columns
// and indexes.
func RunMigrations(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
