package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApplyTransition performs one conditional status change. The outbox row is
// written in the same transaction; the audit entry follows the commit. It
// returns false when the stored status no longer equals t.From.
func (s *Service) ApplyTransition(ctx context.Context, offer *offerdomain.Offer, t offerdomain.Transition, actor offerdomain.Actor) (bool, error) {
	if offer == nil {
		return false, offerdomain.ErrNotFound
	}
	if t.OfferID == 0 {
		t.OfferID = offer.ID
	}
	if t.At.IsZero() {
		t.At = s.clock.Now()
	}
	if !offerdomain.CanTransition(t.From, t.To) {
		return false, offerdomain.NewConflict(t.OfferID, t.From)
	}

	next := *offer
	next.Status = t.To
	if t.ProofReference != nil {
		next.ProofReference = t.ProofReference
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Transition(ctx, tx, t)
		if err != nil || !ok {
			return err
		}
		applied = true
		return s.outbox.PublishTx(ctx, tx, transitionEvent(&next, t.From, t.To, t.At))
	})
	if err != nil {
		return false, fmt.Errorf("apply transition %s -> %s: %w", t.From, t.To, err)
	}
	if !applied {
		s.logFor(ctx).Debug("offer transition lost race",
			zap.String("offer_id", t.OfferID.String()),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
		)
		return false, nil
	}

	s.metrics.IncTransition(string(t.From), string(t.To))
	metadata := map[string]any{
		"from": string(t.From),
		"to":   string(t.To),
	}
	if t.ProofReference != nil {
		metadata["proof_reference"] = *t.ProofReference
	}
	if t.DisputeReason != nil {
		metadata["reason"] = *t.DisputeReason
	}
	s.audit(ctx, actor, "offer."+string(t.To), offer, metadata)
	s.logFor(ctx).Info("offer transitioned",
		zap.String("offer_id", t.OfferID.String()),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)
	return true, nil
}

func (s *Service) AcceptOffer(ctx context.Context, offerID, actorID snowflake.ID) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.accept", attribute.String("offer_id", offerID.String()))
	defer func() { endSpan(span, err) }()

	offer, err = s.loadForReceiver(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, offer, offerdomain.Transition{
		From: offerdomain.StatusAuthorized,
		To:   offerdomain.StatusPendingProof,
	}, userActor(actorID))
}

func (s *Service) SubmitProof(ctx context.Context, req offerdomain.SubmitProofRequest) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.submit_proof", attribute.String("offer_id", req.OfferID.String()))
	defer func() { endSpan(span, err) }()

	proof := strings.TrimSpace(req.ProofReference)
	if proof == "" {
		return nil, invalidRequest("proof reference is required")
	}
	offer, err = s.loadForReceiver(ctx, req.OfferID, req.ActorID)
	if err != nil {
		return nil, err
	}
	offer, err = s.transition(ctx, offer, offerdomain.Transition{
		From:           offerdomain.StatusPendingProof,
		To:             offerdomain.StatusProofSubmitted,
		ProofReference: &proof,
	}, userActor(req.ActorID))
	if err != nil {
		return nil, err
	}

	offerID := offer.ID
	detached := context.WithoutCancel(ctx)
	s.async(func() {
		ctx, cancel := context.WithTimeout(detached, captureTimeout)
		defer cancel()
		if _, err := s.requestCapture(ctx, offerID); err != nil {
			s.logFor(ctx).Warn("capture request after proof failed",
				zap.String("offer_id", offerID.String()),
				zap.Error(err),
			)
		}
	})
	return offer, nil
}

func (s *Service) DeclineOffer(ctx context.Context, offerID, actorID snowflake.ID) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.decline", attribute.String("offer_id", offerID.String()))
	defer func() { endSpan(span, err) }()

	offer, err = s.loadForReceiver(ctx, offerID, actorID)
	if err != nil {
		return nil, err
	}
	if offer.Status != offerdomain.StatusAuthorized && offer.Status != offerdomain.StatusPendingProof {
		return nil, offerdomain.NewConflict(offer.ID, offerdomain.StatusAuthorized, offerdomain.StatusPendingProof)
	}
	return s.voidAndTerminate(ctx, offer, offerdomain.StatusDeclined, userActor(actorID))
}

func (s *Service) CancelOffer(ctx context.Context, offerID, actorID snowflake.ID) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.cancel", attribute.String("offer_id", offerID.String()))
	defer func() { endSpan(span, err) }()

	if actorID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	offer, err = s.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.GiverID != actorID {
		return nil, offerdomain.ErrForbidden
	}
	if !offerdomain.CanTransition(offer.Status, offerdomain.StatusCancelled) {
		return nil, offerdomain.NewConflict(offer.ID, offerdomain.Sources(offerdomain.StatusCancelled)...)
	}
	return s.voidAndTerminate(ctx, offer, offerdomain.StatusCancelled, userActor(actorID))
}

func (s *Service) DisputeOffer(ctx context.Context, req offerdomain.DisputeRequest) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.dispute", attribute.String("offer_id", req.OfferID.String()))
	defer func() { endSpan(span, err) }()

	if req.ActorID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	offer, err = s.load(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if !offer.IsParty(req.ActorID) {
		return nil, offerdomain.ErrForbidden
	}
	var reason *string
	if value := strings.TrimSpace(req.Reason); value != "" {
		reason = &value
	}
	return s.transition(ctx, offer, offerdomain.Transition{
		From:          offer.Status,
		To:            offerdomain.StatusDisputed,
		DisputeReason: reason,
	}, userActor(req.ActorID))
}

// voidAndTerminate releases the held funds before moving to a terminal
// status. A failed void leaves the offer untouched so the call can be retried.
func (s *Service) voidAndTerminate(ctx context.Context, offer *offerdomain.Offer, to offerdomain.Status, actor offerdomain.Actor) (*offerdomain.Offer, error) {
	err := s.gateway.Void(ctx, gatewaydomain.VoidRequest{
		Token:          offer.GatewayPreAuthToken,
		TransactionID:  offer.GatewayTransactionID,
		IdempotencyKey: voidKey(offer),
	})
	s.metrics.IncGatewayCall("void", err)
	if err != nil {
		return nil, s.gatewayError(ctx, "void", offer.ID, err)
	}
	updated, err := s.transition(ctx, offer, offerdomain.Transition{
		From: offer.Status,
		To:   to,
	}, actor)
	if errors.Is(err, offerdomain.ErrConflict) {
		s.voidedWithoutTransition(ctx, offer, to, actor)
	}
	return updated, err
}

// voidedWithoutTransition records a pre-auth released for an offer that moved
// on concurrently, so the funds state can be reconciled by hand.
func (s *Service) voidedWithoutTransition(ctx context.Context, offer *offerdomain.Offer, to offerdomain.Status, actor offerdomain.Actor) {
	current := ""
	if stored, err := s.repo.FindByID(ctx, s.db, offer.ID); err == nil && stored != nil {
		current = string(stored.Status)
	}
	s.logFor(ctx).Warn("pre-auth voided but offer moved on",
		zap.String("offer_id", offer.ID.String()),
		zap.String("transaction_id", offer.GatewayTransactionID),
		zap.String("from", string(offer.Status)),
		zap.String("to", string(to)),
		zap.String("current", current),
	)
	s.audit(ctx, actor, "offer.void_without_transition", offer, map[string]any{
		"from":           string(offer.Status),
		"to":             string(to),
		"current_status": current,
	})
}

// transition applies t and returns the stored offer, or a conflict when the
// offer is not in t.From or another caller won the race.
func (s *Service) transition(ctx context.Context, offer *offerdomain.Offer, t offerdomain.Transition, actor offerdomain.Actor) (*offerdomain.Offer, error) {
	if offer.Status != t.From || !offerdomain.CanTransition(t.From, t.To) {
		return nil, offerdomain.NewConflict(offer.ID, t.From)
	}
	t.OfferID = offer.ID
	t.At = s.clock.Now()
	applied, err := s.ApplyTransition(ctx, offer, t, actor)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, offerdomain.NewConflict(offer.ID, t.From)
	}
	return s.reload(ctx, offer.ID)
}

func (s *Service) reload(ctx context.Context, offerID snowflake.ID) (*offerdomain.Offer, error) {
	offer, err := s.repo.FindByID(ctx, s.db, offerID)
	if err != nil {
		return nil, fmt.Errorf("reload offer: %w", err)
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}
	return offer, nil
}

func (s *Service) loadForReceiver(ctx context.Context, offerID, actorID snowflake.ID) (*offerdomain.Offer, error) {
	if actorID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	offer, err := s.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ReceiverID != actorID {
		return nil, offerdomain.ErrForbidden
	}
	return offer, nil
}
