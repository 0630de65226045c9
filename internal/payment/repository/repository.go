package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*gatewaydomain.EventRecord, error) {
	var record gatewaydomain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertEvent stores a received event. It reports false when the same
// provider event was already stored.
func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *gatewaydomain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error {
	return db.WithContext(ctx).
		Model(&gatewaydomain.EventRecord{}).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(map[string]any{
			"outcome":      outcome,
			"processed_at": processedAt.UTC(),
		}).Error
}
