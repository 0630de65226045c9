package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/escrow/internal/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	batches [][]OfferEvent
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, batch []OfferEvent) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func TestRelayDeliversInOrderAndMarksPublished(t *testing.T) {
	db, outbox := setupOutbox(t)
	ctx := context.Background()
	for i, to := range []string{"authorized", "pendingProof", "proofSubmitted"} {
		event := Event{OfferID: 9, Type: "offer." + to, DedupeKey: "9:" + to}
		if err := outbox.Publish(ctx, event); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	sink := &recordingSink{}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	relay := NewRelay(RelayParams{
		Outbox: outbox,
		Sink:   sink,
		Log:    zap.NewNop(),
		Clock:  clock.FixedClock{At: now},
		Config: RelayConfig{BatchSize: 2},
	})

	n, err := relay.RunOnce(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first run: n=%d err=%v", n, err)
	}
	if got := sink.batches[0][0].EventType; got != "offer.authorized" {
		t.Fatalf("expected oldest event first, got %s", got)
	}
	if n, err = relay.RunOnce(ctx); err != nil || n != 1 {
		t.Fatalf("second run: n=%d err=%v", n, err)
	}
	if n, err = relay.RunOnce(ctx); err != nil || n != 0 {
		t.Fatalf("drained run: n=%d err=%v", n, err)
	}

	var rows []OfferEvent
	if err := db.Where("published = ?", true).Find(&rows).Error; err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(rows) != 3 || rows[0].PublishedAt == nil || !rows[0].PublishedAt.Equal(now) {
		t.Fatalf("expected 3 published rows stamped at %v, got %+v", now, rows)
	}
}

func TestRelayKeepsBatchWhenSinkFails(t *testing.T) {
	_, outbox := setupOutbox(t)
	ctx := context.Background()
	if err := outbox.Publish(ctx, Event{OfferID: 3, Type: EventOfferCompleted, DedupeKey: "3:completed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	relay := NewRelay(RelayParams{
		Outbox: outbox,
		Sink:   &recordingSink{err: errors.New("broker down")},
		Log:    zap.NewNop(),
		Clock:  clock.SystemClock{},
	})
	if _, err := relay.RunOnce(ctx); err == nil {
		t.Fatal("expected sink error")
	}
	pending, err := outbox.ListUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("list unpublished: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected event to stay unpublished, got %d", len(pending))
	}
}

func TestLogSinkWritesEachEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	err := sink.Deliver(context.Background(), []OfferEvent{
		{ID: 1, OfferID: 9, EventType: EventOfferAuthorized},
		{ID: 2, OfferID: 9, EventType: EventOfferPendingProof},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	entries := logs.FilterMessage("offer event").All()
	if len(entries) != 2 || entries[1].ContextMap()["event_type"] != EventOfferPendingProof {
		t.Fatalf("unexpected log entries %+v", entries)
	}
}
