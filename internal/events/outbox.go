package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event describes an offer event to store in the outbox.
type Event struct {
	OfferID   snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Outbox inserts offer events into the offer_events table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

// NewOutbox stamps events with clk, or the system clock when clk is nil.
func NewOutbox(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Outbox {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Outbox{db: db, genID: genID, clock: clk}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

// ListUnpublished returns the oldest unpublished events.
func (o *Outbox) ListUnpublished(ctx context.Context, limit int) ([]OfferEvent, error) {
	if o == nil || o.db == nil {
		return nil, errors.New("outbox_unavailable")
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []OfferEvent
	err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPublished flags events as delivered to downstream consumers.
func (o *Outbox) MarkPublished(ctx context.Context, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return o.db.WithContext(ctx).
		Model(&OfferEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"published": true, "published_at": at.UTC()}).Error
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.OfferID == 0 {
		return errors.New("invalid_offer_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	var dedupe *string
	if value := strings.TrimSpace(event.DedupeKey); value != "" {
		dedupe = &value
	}

	row := OfferEvent{
		ID:        o.genID.Generate(),
		OfferID:   event.OfferID,
		EventType: name,
		Payload:   payload,
		DedupeKey: dedupe,
		CreatedAt: o.clock.Now(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(&row).Error
}
