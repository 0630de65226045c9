package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RetryCapture re-requests capture for an offer whose previous capture
// request failed. Status is never changed here.
func (s *Service) RetryCapture(ctx context.Context, offerID, actorID snowflake.ID) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.retry_capture", attribute.String("offer_id", offerID.String()))
	defer func() { endSpan(span, err) }()

	if actorID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	offer, err = s.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsParty(actorID) {
		return nil, offerdomain.ErrForbidden
	}
	return s.capture(ctx, offer, userActor(actorID))
}

// RequestCapture is the system path used after proof submission and by the
// retry worker.
func (s *Service) RequestCapture(ctx context.Context, offerID snowflake.ID) (*offerdomain.Offer, error) {
	return s.requestCapture(ctx, offerID)
}

func (s *Service) requestCapture(ctx context.Context, offerID snowflake.ID) (*offerdomain.Offer, error) {
	offer, err := s.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return s.capture(ctx, offer, offerdomain.Actor{Type: string(auditdomain.ActorTypeSystem)})
}

func (s *Service) capture(ctx context.Context, offer *offerdomain.Offer, actor offerdomain.Actor) (*offerdomain.Offer, error) {
	if offer.Status != offerdomain.StatusProofSubmitted {
		return nil, offerdomain.NewConflict(offer.ID, offerdomain.StatusProofSubmitted)
	}
	claim := offerdomain.CaptureClaim{
		OfferID:  offer.ID,
		Attempts: offer.CaptureAttempts,
		At:       s.clock.Now(),
	}
	claimed, err := s.repo.ClaimCapture(ctx, s.db, claim)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, offerdomain.NewConflict(offer.ID, offerdomain.StatusProofSubmitted)
	}

	// The gateway call must finish well inside the claim lease.
	callCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	captureErr := s.gateway.Capture(callCtx, gatewaydomain.CaptureRequest{
		Token:          offer.GatewayPreAuthToken,
		TransactionID:  offer.GatewayTransactionID,
		Amount:         offer.Amount,
		Currency:       offer.Currency,
		IdempotencyKey: captureKey(offer, claim.Attempt()),
	})
	cancel()
	s.metrics.IncGatewayCall("capture", captureErr)

	outcome := offerdomain.CaptureOutcome{
		OfferID: offer.ID,
		Attempt: claim.Attempt(),
		State:   offerdomain.CaptureStateRequested,
		At:      s.clock.Now(),
	}
	action := "offer.capture_requested"
	metadata := map[string]any{"attempt": claim.Attempt()}
	if captureErr != nil {
		msg := captureFailureMessage(captureErr)
		outcome.State = offerdomain.CaptureStateFailed
		outcome.Error = &msg
		action = "offer.capture_failed"
		metadata["error"] = msg
	}

	// Record on a detached context; a claim left in flight anyway expires
	// after CaptureLease and is picked up by the retry worker.
	if err := s.repo.RecordCapture(context.WithoutCancel(ctx), s.db, outcome); err != nil {
		s.logFor(ctx).Error("failed to record capture outcome",
			zap.String("offer_id", offer.ID.String()),
			zap.String("capture_state", string(outcome.State)),
			zap.Error(err),
		)
		return nil, err
	}
	s.audit(ctx, actor, action, offer, metadata)

	if captureErr != nil {
		return nil, s.gatewayError(ctx, "capture", offer.ID, captureErr)
	}
	s.logFor(ctx).Info("capture requested", zap.String("offer_id", offer.ID.String()))
	return s.reload(ctx, offer.ID)
}

func captureFailureMessage(err error) string {
	if gwErr, ok := gatewaydomain.AsError(err); ok {
		if code := strings.TrimSpace(gwErr.Code); code != "" {
			return code
		}
		if gwErr.Retryable {
			return "retryable_failure"
		}
	}
	return "capture_failed"
}
