package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditrepository "github.com/smallbiznis/escrow/internal/audit/repository"
	auditservice "github.com/smallbiznis/escrow/internal/audit/service"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	"github.com/smallbiznis/escrow/internal/events"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/offer/offertest"
	"github.com/smallbiznis/escrow/internal/offer/repository"
	"github.com/smallbiznis/escrow/internal/offer/service"
	"github.com/smallbiznis/escrow/internal/offer/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const (
	giverID    snowflake.ID = 1
	receiverID snowflake.ID = 2
)

type harness struct {
	db         *gorm.DB
	svc        *service.Service
	reconciler *Reconciler
	logs       *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := offertest.NewDB(t)
	node := offertest.NewNode(t)
	clk := clock.FixedClock{At: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk,
	})
	svc := service.NewService(service.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      repository.Provide(),
		Gateway:   &offertest.Gateway{},
		Validator: validation.NewEngine(offertest.Listings{}),
		Outbox:    events.NewOutbox(db, node, clk),
		AuditSvc:  auditSvc,
		Clock:     clk,
		Cfg:       config.Config{DefaultCurrency: "TRY"},
		Async:     func(fn func()) { fn() },
	})
	reconciler := NewReconciler(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         repository.Provide(),
		Transitioner: svc,
		AuditSvc:     auditSvc,
		Clock:        clk,
		Outbox:       events.NewOutbox(db, node, clk),
	})
	return &harness{db: db, svc: svc, reconciler: reconciler, logs: logs}
}

func (h *harness) createOffer(t *testing.T) *offerdomain.Offer {
	t.Helper()
	offer, err := h.svc.CreateOffer(context.Background(), offerdomain.CreateOfferRequest{
		GiverID:    giverID,
		ReceiverID: receiverID,
		Amount:     decimal.NewFromInt(150),
		Currency:   "TRY",
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return offer
}

func (h *harness) status(t *testing.T, id snowflake.ID) *offerdomain.Offer {
	t.Helper()
	offer, err := h.svc.GetOffer(context.Background(), id, giverID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	return offer
}

func event(offer *offerdomain.Offer, eventType gatewaydomain.EventType, id string) *gatewaydomain.Event {
	return &gatewaydomain.Event{
		Provider:        offertest.Provider,
		ProviderEventID: id,
		Type:            eventType,
		TransactionID:   offer.GatewayTransactionID,
		OccurredAt:      time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Verified:        true,
	}
}

func (h *harness) reconcile(t *testing.T, ev *gatewaydomain.Event) offerdomain.ReconcileResult {
	t.Helper()
	result, err := h.reconciler.Reconcile(context.Background(), ev)
	if err != nil {
		t.Fatalf("reconcile %s: %v", ev.Type, err)
	}
	return result
}

func TestHappyPathCompletesOnlyThroughReconciler(t *testing.T) {
	h := newHarness(t)
	offer := h.createOffer(t)

	if got := h.reconcile(t, event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1")); got.Outcome != offerdomain.OutcomeApplied || got.To != offerdomain.StatusAuthorized {
		t.Fatalf("unexpected result %+v", got)
	}
	if _, err := h.svc.AcceptOffer(context.Background(), offer.ID, receiverID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.svc.SubmitProof(context.Background(), offerdomain.SubmitProofRequest{
		OfferID: offer.ID, ActorID: receiverID, ProofReference: "proof/1",
	}); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if got := h.status(t, offer.ID); got.Status != offerdomain.StatusProofSubmitted {
		t.Fatalf("expected proofSubmitted, got %s", got.Status)
	}

	capture := event(offer, gatewaydomain.EventCaptureConfirmed, "evt_2")
	if got := h.reconcile(t, capture); got.Outcome != offerdomain.OutcomeApplied {
		t.Fatalf("expected applied, got %+v", got)
	}
	completed := h.status(t, offer.ID)
	if completed.Status != offerdomain.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed with completed_at, got %+v", completed)
	}
	completedAt := *completed.CompletedAt

	if got := h.reconcile(t, capture); got.Outcome != offerdomain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %+v", got)
	}
	again := h.status(t, offer.ID)
	if again.Status != offerdomain.StatusCompleted || !again.CompletedAt.Equal(completedAt) {
		t.Fatalf("duplicate delivery changed the offer: %+v", again)
	}

	completedEvents := 0
	for _, eventType := range offertest.EventTypes(t, h.db, offer.ID) {
		if eventType == events.EventOfferCompleted {
			completedEvents++
		}
	}
	if completedEvents != 1 {
		t.Fatalf("expected one completed event, got %d", completedEvents)
	}
}

func TestRejectsUnverifiedEvents(t *testing.T) {
	h := newHarness(t)
	offer := h.createOffer(t)
	ev := event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1")
	ev.Verified = false

	if _, err := h.reconciler.Reconcile(context.Background(), ev); !errors.Is(err, offerdomain.ErrUnverifiedEvent) {
		t.Fatalf("expected UNVERIFIED_EVENT, got %v", err)
	}
	if got := h.status(t, offer.ID); got.Status != offerdomain.StatusPendingGatewayApproval {
		t.Fatalf("unverified event changed status to %s", got.Status)
	}
}

func TestUnknownTransactionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	result, err := h.reconciler.Reconcile(context.Background(), &gatewaydomain.Event{
		Provider:        offertest.Provider,
		ProviderEventID: "evt_x",
		Type:            gatewaydomain.EventCaptureConfirmed,
		TransactionID:   "txn_missing",
		Verified:        true,
	})
	if err != nil {
		t.Fatalf("expected ack for unknown transaction, got %v", err)
	}
	if result.Outcome != offerdomain.OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", result.Outcome)
	}
}

func TestStaleAuthorizationIsNoop(t *testing.T) {
	h := newHarness(t)
	offer := h.createOffer(t)
	h.reconcile(t, event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1"))
	if _, err := h.svc.AcceptOffer(context.Background(), offer.ID, receiverID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if got := h.reconcile(t, event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1b")); got.Outcome != offerdomain.OutcomeStale {
		t.Fatalf("expected stale, got %+v", got)
	}
	if got := h.status(t, offer.ID); got.Status != offerdomain.StatusPendingProof {
		t.Fatalf("stale event moved status to %s", got.Status)
	}
}

func TestCaptureBeforeProofIsAnomaly(t *testing.T) {
	h := newHarness(t)
	offer := h.createOffer(t)
	h.reconcile(t, event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1"))

	result, err := h.reconciler.Reconcile(context.Background(), event(offer, gatewaydomain.EventCaptureConfirmed, "evt_2"))
	if !errors.Is(err, offerdomain.ErrReconciliationAnomaly) {
		t.Fatalf("expected RECONCILIATION_ANOMALY, got %v", err)
	}
	if result.Outcome != offerdomain.OutcomeAnomaly {
		t.Fatalf("expected anomaly outcome, got %s", result.Outcome)
	}
	if got := h.status(t, offer.ID); got.Status != offerdomain.StatusAuthorized || got.CompletedAt != nil {
		t.Fatalf("anomaly must not complete the offer: %+v", got)
	}

	redelivered, err := h.reconciler.Reconcile(context.Background(), event(offer, gatewaydomain.EventCaptureConfirmed, "evt_2"))
	if !errors.Is(err, offerdomain.ErrReconciliationAnomaly) || redelivered.Outcome != offerdomain.OutcomeAnomaly {
		t.Fatalf("expected redelivery to report the anomaly, got %s %v", redelivered.Outcome, err)
	}

	var anomalies []offerdomain.Anomaly
	if err := h.db.Find(&anomalies).Error; err != nil {
		t.Fatalf("list anomalies: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0].ObservedStatus != offerdomain.StatusAuthorized || anomalies[0].ProviderEventID != "evt_2" {
		t.Fatalf("unexpected anomalies %+v", anomalies)
	}
	if h.logs.FilterMessage("reconciliation anomaly requires manual review").Len() != 1 {
		t.Fatalf("expected anomaly error log")
	}
	var audits int64
	if err := h.db.Table("audit_logs").Where("action = ?", "offer.reconciliation_anomaly").Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("expected one anomaly audit, got %d", audits)
	}
	var published int64
	if err := h.db.Model(&events.OfferEvent{}).Where("event_type = ?", events.EventOfferReconciliationAnomaly).Count(&published).Error; err != nil {
		t.Fatalf("count anomaly events: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected one anomaly outbox event, got %d", published)
	}
}

func TestFailureEventsDeclineOrRefund(t *testing.T) {
	h := newHarness(t)

	pending := h.createOffer(t)
	if got := h.reconcile(t, event(pending, gatewaydomain.EventAuthorizationFailed, "evt_f1")); got.To != offerdomain.StatusDeclined {
		t.Fatalf("expected declined, got %+v", got)
	}
	declined := h.status(t, pending.ID)
	if declined.Status != offerdomain.StatusDeclined || declined.TerminatedAt == nil {
		t.Fatalf("unexpected declined offer %+v", declined)
	}
	if got := h.reconcile(t, event(pending, gatewaydomain.EventVoided, "evt_f2")); got.Outcome != offerdomain.OutcomeDuplicate {
		t.Fatalf("expected duplicate reversal, got %+v", got)
	}

	captured := h.createOffer(t)
	h.reconcile(t, event(captured, gatewaydomain.EventAuthorizationConfirmed, "evt_c1"))
	if _, err := h.svc.AcceptOffer(context.Background(), captured.ID, receiverID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.svc.SubmitProof(context.Background(), offerdomain.SubmitProofRequest{
		OfferID: captured.ID, ActorID: receiverID, ProofReference: "proof/2",
	}); err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if got := h.reconcile(t, event(captured, gatewaydomain.EventCaptureFailed, "evt_c2")); got.To != offerdomain.StatusRefunded {
		t.Fatalf("expected refunded, got %+v", got)
	}
	if got := h.status(t, captured.ID); got.Status != offerdomain.StatusRefunded || got.TerminatedAt == nil {
		t.Fatalf("unexpected refunded offer %+v", got)
	}
}

func TestDisputeEvent(t *testing.T) {
	h := newHarness(t)
	offer := h.createOffer(t)
	h.reconcile(t, event(offer, gatewaydomain.EventAuthorizationConfirmed, "evt_1"))

	ev := event(offer, gatewaydomain.EventDisputeOpened, "evt_d1")
	ev.FailureMessage = "fraudulent"
	if got := h.reconcile(t, ev); got.Outcome != offerdomain.OutcomeApplied || got.To != offerdomain.StatusDisputed {
		t.Fatalf("unexpected result %+v", got)
	}
	stored := h.status(t, offer.ID)
	if stored.DisputedAt == nil || stored.DisputeReason == nil || *stored.DisputeReason != "fraudulent" {
		t.Fatalf("unexpected disputed offer %+v", stored)
	}
	if got := h.reconcile(t, ev); got.Outcome != offerdomain.OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %+v", got)
	}
}
