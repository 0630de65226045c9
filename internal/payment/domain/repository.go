package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	"gorm.io/gorm"
)

// Repository persists the webhook dedupe ledger. InsertEvent reports false
// when (provider, provider_event_id) is already present.
type Repository interface {
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*gatewaydomain.EventRecord, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *gatewaydomain.EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error
}
