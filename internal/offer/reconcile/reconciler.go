package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/events"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         offerdomain.Repository
	Transitioner offerdomain.Transitioner
	AuditSvc     auditdomain.Service
	Clock        clock.Clock
	Outbox       *events.Outbox        `optional:"true"`
	Metrics      *metrics.OfferMetrics `optional:"true"`
}

// Reconciler applies verified gateway events to offers. It is the only path
// to the completed status, and it uses the same conditional transition as
// every other caller.
type Reconciler struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         offerdomain.Repository
	transitioner offerdomain.Transitioner
	auditSvc     auditdomain.Service
	clock        clock.Clock
	outbox       *events.Outbox
	metrics      *metrics.OfferMetrics
}

func NewReconciler(p Params) *Reconciler {
	return &Reconciler{
		db:           p.DB,
		log:          p.Log.Named("offer.reconcile"),
		genID:        p.GenID,
		repo:         p.Repo,
		transitioner: p.Transitioner,
		auditSvc:     p.AuditSvc,
		clock:        p.Clock,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, event *gatewaydomain.Event) (offerdomain.ReconcileResult, error) {
	if event == nil {
		return offerdomain.ReconcileResult{}, gatewaydomain.ErrInvalidEvent
	}
	if !event.Verified {
		return offerdomain.ReconcileResult{}, offerdomain.ErrUnverifiedEvent
	}

	result, err := r.reconcile(ctx, event)
	r.metrics.IncWebhookEvent(string(event.Type), string(result.Outcome))
	return result, err
}

func (r *Reconciler) reconcile(ctx context.Context, event *gatewaydomain.Event) (offerdomain.ReconcileResult, error) {
	log := logger.WithContext(r.log, ctx).With(
		zap.String("provider", event.Provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("event_type", string(event.Type)),
		zap.String("transaction_id", event.TransactionID),
	)

	txID := strings.TrimSpace(event.TransactionID)
	if txID == "" {
		return offerdomain.ReconcileResult{Outcome: offerdomain.OutcomeIgnored}, gatewaydomain.ErrInvalidEvent
	}
	offer, err := r.repo.FindByTransactionID(ctx, r.db, event.Provider, txID)
	if err != nil {
		return offerdomain.ReconcileResult{}, fmt.Errorf("find offer by transaction: %w", err)
	}
	if offer == nil {
		log.Info("discarding gateway event for unknown transaction")
		return offerdomain.ReconcileResult{Outcome: offerdomain.OutcomeNotFound}, nil
	}

	base := offerdomain.ReconcileResult{OfferID: offer.ID, From: offer.Status, To: offer.Status}
	switch event.Type {
	case gatewaydomain.EventAuthorizationConfirmed:
		if offer.Status != offerdomain.StatusPendingGatewayApproval {
			log.Debug("stale authorization event", zap.String("status", string(offer.Status)))
			base.Outcome = offerdomain.OutcomeStale
			return base, nil
		}
		return r.apply(ctx, offer, event, offerdomain.StatusAuthorized)

	case gatewaydomain.EventCaptureConfirmed:
		switch offer.Status {
		case offerdomain.StatusCompleted:
			base.Outcome = offerdomain.OutcomeDuplicate
			return base, nil
		case offerdomain.StatusProofSubmitted:
			return r.apply(ctx, offer, event, offerdomain.StatusCompleted)
		default:
			return r.anomaly(ctx, offer, event, "capture confirmed before proof was submitted")
		}

	case gatewaydomain.EventAuthorizationFailed, gatewaydomain.EventCaptureFailed, gatewaydomain.EventVoided:
		switch offer.Status {
		case offerdomain.StatusDeclined, offerdomain.StatusRefunded, offerdomain.StatusCancelled:
			base.Outcome = offerdomain.OutcomeDuplicate
			return base, nil
		case offerdomain.StatusProofSubmitted:
			return r.apply(ctx, offer, event, offerdomain.StatusRefunded)
		case offerdomain.StatusPendingGatewayApproval, offerdomain.StatusAuthorized, offerdomain.StatusPendingProof:
			return r.apply(ctx, offer, event, offerdomain.StatusDeclined)
		default:
			log.Warn("reversal event for settled offer ignored", zap.String("status", string(offer.Status)))
			base.Outcome = offerdomain.OutcomeStale
			return base, nil
		}

	case gatewaydomain.EventDisputeOpened:
		if offer.Status == offerdomain.StatusDisputed {
			base.Outcome = offerdomain.OutcomeDuplicate
			return base, nil
		}
		if offer.Status.IsTerminal() {
			log.Warn("dispute event for terminal offer ignored", zap.String("status", string(offer.Status)))
			base.Outcome = offerdomain.OutcomeStale
			return base, nil
		}
		return r.apply(ctx, offer, event, offerdomain.StatusDisputed)
	}

	log.Debug("gateway event type not reconciled")
	base.Outcome = offerdomain.OutcomeIgnored
	return base, nil
}

// apply runs the conditional transition. When it loses a race the current
// status decides whether the event was a duplicate or stale.
func (r *Reconciler) apply(ctx context.Context, offer *offerdomain.Offer, event *gatewaydomain.Event, to offerdomain.Status) (offerdomain.ReconcileResult, error) {
	from := offer.Status
	t := offerdomain.Transition{
		OfferID: offer.ID,
		From:    from,
		To:      to,
		At:      r.clock.Now(),
	}
	if to == offerdomain.StatusDisputed && event.FailureMessage != "" {
		reason := event.FailureMessage
		t.DisputeReason = &reason
	}
	applied, err := r.transitioner.ApplyTransition(ctx, offer, t, offerdomain.Actor{
		Type: string(auditdomain.ActorTypeGateway),
		ID:   event.Provider,
	})
	if err != nil {
		return offerdomain.ReconcileResult{OfferID: offer.ID, From: from, To: from}, err
	}
	if applied {
		return offerdomain.ReconcileResult{Outcome: offerdomain.OutcomeApplied, OfferID: offer.ID, From: from, To: to}, nil
	}

	current, err := r.repo.FindByID(ctx, r.db, offer.ID)
	if err != nil {
		return offerdomain.ReconcileResult{}, fmt.Errorf("reload offer: %w", err)
	}
	result := offerdomain.ReconcileResult{Outcome: offerdomain.OutcomeStale, OfferID: offer.ID, From: from, To: from}
	if current != nil {
		result.To = current.Status
		if current.Status == to {
			result.Outcome = offerdomain.OutcomeDuplicate
		}
	}
	return result, nil
}

// anomaly persists an event that contradicts local state for manual review.
// The offer is left untouched.
func (r *Reconciler) anomaly(ctx context.Context, offer *offerdomain.Offer, event *gatewaydomain.Event, reason string) (offerdomain.ReconcileResult, error) {
	details := datatypes.JSONMap{
		"transaction_id": event.TransactionID,
		"amount":         offer.Amount.String(),
		"currency":       offer.Currency,
	}
	if !event.OccurredAt.IsZero() {
		details["occurred_at"] = event.OccurredAt.UTC().Format(time.RFC3339)
	}
	row := &offerdomain.Anomaly{
		ID:              r.genID.Generate(),
		OfferID:         offer.ID,
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       string(event.Type),
		ObservedStatus:  offer.Status,
		Reason:          reason,
		Details:         details,
		CreatedAt:       r.clock.Now(),
	}
	inserted, err := r.repo.InsertAnomaly(ctx, r.db, row)
	if err != nil {
		return offerdomain.ReconcileResult{}, fmt.Errorf("record anomaly: %w", err)
	}
	result := offerdomain.ReconcileResult{Outcome: offerdomain.OutcomeAnomaly, OfferID: offer.ID, From: offer.Status, To: offer.Status}
	if !inserted {
		// A concurrent delivery of the same event already recorded it.
		return result, offerdomain.NewError(offerdomain.KindReconciliationAnomaly, reason, map[string]any{
			"offer_id": offer.ID.String(),
		}, nil)
	}
	r.metrics.IncAnomaly(string(event.Type), string(offer.Status))

	targetID := offer.ID.String()
	if r.outbox != nil {
		err := r.outbox.Publish(ctx, events.Event{
			OfferID: offer.ID,
			Type:    events.EventOfferReconciliationAnomaly,
			Payload: map[string]any{
				"anomaly_id":      row.ID.String(),
				"event_type":      string(event.Type),
				"observed_status": string(offer.Status),
				"reason":          reason,
			},
			DedupeKey: "anomaly:" + event.Provider + ":" + event.ProviderEventID,
		})
		if err != nil {
			r.log.Warn("failed to publish reconciliation anomaly", zap.String("offer_id", targetID), zap.Error(err))
		}
	}

	actorID := event.Provider
	if r.auditSvc != nil {
		if err := r.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeGateway), &actorID, "offer.reconciliation_anomaly", "offer", &targetID, map[string]any{
			"anomaly_id":        row.ID.String(),
			"event_type":        string(event.Type),
			"provider_event_id": event.ProviderEventID,
			"observed_status":   string(offer.Status),
			"reason":            reason,
		}); err != nil {
			r.log.Warn("failed to audit reconciliation anomaly", zap.String("offer_id", targetID), zap.Error(err))
		}
	}

	logger.WithContext(r.log, ctx).Error("reconciliation anomaly requires manual review",
		zap.String("offer_id", targetID),
		zap.String("anomaly_id", row.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("observed_status", string(offer.Status)),
		zap.String("reason", reason),
	)

	return result, offerdomain.NewError(offerdomain.KindReconciliationAnomaly, reason, map[string]any{
		"anomaly_id": row.ID.String(),
		"offer_id":   targetID,
	}, nil)
}
