package events

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/clock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var outboxNow = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

func setupOutbox(t *testing.T) (*gorm.DB, *Outbox) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&OfferEvent{}); err != nil {
		t.Fatalf("migrate offer_events: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return db, NewOutbox(db, node, clock.FixedClock{At: outboxNow})
}

func TestPublishDedupes(t *testing.T) {
	db, outbox := setupOutbox(t)
	ctx := context.Background()

	event := Event{
		OfferID:   77,
		Type:      EventOfferCancelled,
		Payload:   TransitionPayload{OfferID: "77", From: "authorized", To: "cancelled"}.ToMap(),
		DedupeKey: "77:cancelled",
	}
	for i := 0; i < 2; i++ {
		if err := outbox.Publish(ctx, event); err != nil {
			t.Fatalf("publish #%d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&OfferEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
}

func TestPublishRejectsInvalidEvents(t *testing.T) {
	_, outbox := setupOutbox(t)
	ctx := context.Background()

	if err := outbox.Publish(ctx, Event{Type: EventOfferCompleted}); err == nil {
		t.Fatalf("expected error for missing offer id")
	}
	if err := outbox.Publish(ctx, Event{OfferID: 1, Type: " "}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := outbox.PublishTx(ctx, nil, Event{OfferID: 1, Type: EventOfferCompleted}); err == nil {
		t.Fatalf("expected error for missing transaction")
	}
}

func TestListAndMarkPublished(t *testing.T) {
	_, outbox := setupOutbox(t)
	ctx := context.Background()

	for _, event := range []Event{
		{OfferID: 1, Type: EventOfferAuthorized, DedupeKey: "1:authorized"},
		{OfferID: 1, Type: EventOfferPendingProof, DedupeKey: "1:pendingProof"},
	} {
		if err := outbox.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	rows, err := outbox.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if err := outbox.MarkPublished(ctx, []snowflake.ID{rows[0].ID}, time.Now()); err != nil {
		t.Fatalf("mark: %v", err)
	}
	rows, err = outbox.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].EventType != EventOfferPendingProof {
		t.Fatalf("unexpected remaining rows %+v", rows)
	}
}

func TestPublishStampsClockTime(t *testing.T) {
	_, outbox := setupOutbox(t)
	ctx := context.Background()
	if err := outbox.Publish(ctx, Event{OfferID: 5, Type: EventOfferAuthorized, DedupeKey: "5:authorized"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	rows, err := outbox.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].CreatedAt.Equal(outboxNow) {
		t.Fatalf("expected created_at %v, got %+v", outboxNow, rows)
	}
}
