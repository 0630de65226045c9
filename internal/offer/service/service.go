package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	"github.com/smallbiznis/escrow/internal/events"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/offer/validation"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	"github.com/smallbiznis/escrow/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const captureTimeout = 30 * time.Second

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      offerdomain.Repository
	Gateway   gatewaydomain.Gateway
	Validator *validation.Engine
	Outbox    *events.Outbox
	AuditSvc  auditdomain.Service
	Clock     clock.Clock
	Cfg       config.Config
	Metrics   *metrics.OfferMetrics `optional:"true"`
	Async     func(func())          `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            offerdomain.Repository
	gateway         gatewaydomain.Gateway
	validator       *validation.Engine
	outbox          *events.Outbox
	auditSvc        auditdomain.Service
	clock           clock.Clock
	metrics         *metrics.OfferMetrics
	tracer          trace.Tracer
	defaultCurrency string
	async           func(func())
}

func NewService(p Params) *Service {
	async := p.Async
	if async == nil {
		async = func(fn func()) { go fn() }
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("offer.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		gateway:         p.Gateway,
		validator:       p.Validator,
		outbox:          p.Outbox,
		auditSvc:        p.AuditSvc,
		clock:           p.Clock,
		metrics:         p.Metrics,
		tracer:          otel.Tracer("escrow/offer"),
		defaultCurrency: strings.ToUpper(strings.TrimSpace(p.Cfg.DefaultCurrency)),
		async:           async,
	}
}

func (s *Service) CreateOffer(ctx context.Context, req offerdomain.CreateOfferRequest) (offer *offerdomain.Offer, err error) {
	ctx, span := s.startSpan(ctx, "offer.create", attribute.String("giver_id", req.GiverID.String()))
	defer func() { endSpan(span, err) }()

	if req.GiverID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	if req.ReceiverID == 0 || req.ReceiverID == req.GiverID {
		return nil, invalidRequest("receiver must be another user")
	}
	if !req.Amount.IsPositive() {
		return nil, invalidRequest("amount must be greater than zero")
	}

	requested := strings.ToUpper(strings.TrimSpace(req.Currency))
	metadata := datatypes.JSONMap{
		offerdomain.MetadataIsPrivileged: req.IsPrivileged,
	}

	var currency string
	if req.ListingID != nil {
		result, err := s.validator.ValidateAgainstListing(ctx, *req.ListingID, req.Amount, req.Category)
		if err != nil {
			return nil, fmt.Errorf("validate listing: %w", err)
		}
		if !result.Valid() {
			s.logFor(ctx).Debug("offer rejected by listing validation",
				zap.String("listing_id", req.ListingID.String()),
				zap.String("kind", string(result.Rejection.Kind)),
			)
			return nil, result.Err()
		}
		currency = result.Listing.Currency
		metadata[offerdomain.MetadataPremium] = result.Premium(req.Amount).String()
		metadata[offerdomain.MetadataListingMinimumPrice] = result.Listing.MinimumPrice.String()
		if requested != "" && requested != currency {
			metadata[offerdomain.MetadataRequestedCurrency] = requested
		}
	} else {
		currency = requested
		if currency == "" {
			currency = s.defaultCurrency
		}
	}
	if len(currency) != 3 {
		return nil, invalidRequest("currency must be an ISO 4217 code")
	}

	offerID := s.genID.Generate()
	preAuthKey := ulid.Make().String()
	metadata[offerdomain.MetadataPreAuthRequestID] = preAuthKey

	gwMetadata := map[string]string{
		"offer_id":    offerID.String(),
		"giver_id":    req.GiverID.String(),
		"receiver_id": req.ReceiverID.String(),
	}
	if req.ListingID != nil {
		gwMetadata["listing_id"] = req.ListingID.String()
	}

	preAuth, err := s.gateway.CreatePreAuth(ctx, gatewaydomain.PreAuthRequest{
		Amount:         req.Amount,
		Currency:       currency,
		Metadata:       gwMetadata,
		IdempotencyKey: preAuthKey,
	})
	s.metrics.IncGatewayCall("preauth", err)
	if err != nil {
		return nil, s.gatewayError(ctx, "preauth", offerID, err)
	}
	if preAuth == nil || strings.TrimSpace(preAuth.Token) == "" || strings.TrimSpace(preAuth.TransactionID) == "" {
		return nil, s.gatewayError(ctx, "preauth", offerID, errors.New("preauth response missing token"))
	}

	now := s.clock.Now()
	offer = &offerdomain.Offer{
		ID:                   offerID,
		GiverID:              req.GiverID,
		ReceiverID:           req.ReceiverID,
		ListingID:            req.ListingID,
		Amount:               req.Amount,
		Currency:             currency,
		Category:             strings.TrimSpace(req.Category),
		Message:              strings.TrimSpace(req.Message),
		Status:               offerdomain.StatusPendingGatewayApproval,
		GatewayProvider:      s.gateway.Provider(),
		GatewayPreAuthToken:  preAuth.Token,
		GatewayTransactionID: preAuth.TransactionID,
		Metadata:             metadata,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, offer); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, transitionEvent(offer, "", offerdomain.StatusPendingGatewayApproval, now))
	})
	if err != nil {
		s.releaseOrphanPreAuth(ctx, offer)
		return nil, fmt.Errorf("persist offer: %w", err)
	}

	s.metrics.IncTransition("", string(offerdomain.StatusPendingGatewayApproval))
	s.audit(ctx, offerdomain.Actor{Type: string(auditdomain.ActorTypeUser), ID: req.GiverID.String()}, "offer.created", offer, map[string]any{
		"status":   string(offer.Status),
		"amount":   offer.Amount.String(),
		"currency": offer.Currency,
	})
	s.logFor(ctx).Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("currency", offer.Currency),
	)
	return offer, nil
}

// releaseOrphanPreAuth voids a pre-auth whose offer could not be stored so
// no funds stay held without a record.
func (s *Service) releaseOrphanPreAuth(ctx context.Context, offer *offerdomain.Offer) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()
	err := s.gateway.Void(ctx, gatewaydomain.VoidRequest{
		Token:          offer.GatewayPreAuthToken,
		TransactionID:  offer.GatewayTransactionID,
		IdempotencyKey: voidKey(offer),
	})
	s.metrics.IncGatewayCall("void", err)
	if err != nil {
		s.logFor(ctx).Error("failed to void pre-auth for unsaved offer",
			zap.String("offer_id", offer.ID.String()),
			zap.String("transaction_id", offer.GatewayTransactionID),
			zap.Error(err),
		)
	}
}

func (s *Service) GetOffer(ctx context.Context, offerID, actorID snowflake.ID) (*offerdomain.Offer, error) {
	if actorID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	offer, err := s.load(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.IsParty(actorID) {
		return nil, offerdomain.ErrForbidden
	}
	return offer, nil
}

func (s *Service) ListPendingOffersForReceiver(ctx context.Context, receiverID snowflake.ID) ([]*offerdomain.Offer, error) {
	if receiverID == 0 {
		return nil, offerdomain.ErrNotAuthenticated
	}
	rows, err := s.repo.ListByReceiver(ctx, s.db, receiverID, offerdomain.ReceiverActionable)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return rows, nil
}

func (s *Service) load(ctx context.Context, offerID snowflake.ID) (*offerdomain.Offer, error) {
	if offerID == 0 {
		return nil, offerdomain.ErrNotFound
	}
	offer, err := s.repo.FindByID(ctx, s.db, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}
	return offer, nil
}

func (s *Service) logFor(ctx context.Context) *zap.Logger {
	return logger.WithContext(s.log, ctx)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(tracing.SafeAttributes(attrs...)...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := offerdomain.KindOf(err)
		if kind == offerdomain.KindConflict || kind.IsValidation() {
			span.SetAttributes(attribute.String("offer.error_kind", string(kind)))
		} else {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "offer operation failed")
		}
	}
	span.End()
}

func invalidRequest(message string) error {
	return offerdomain.NewError(offerdomain.KindInvalidRequest, message, nil, nil)
}

// gatewayError converts a processor failure into the user-safe kind. The
// processor code is kept in Context for audit only.
func (s *Service) gatewayError(ctx context.Context, operation string, offerID snowflake.ID, err error) error {
	details := map[string]any{"operation": operation}
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("offer_id", offerID.String()),
		zap.Error(err),
	}
	if gwErr, ok := gatewaydomain.AsError(err); ok {
		details["processor_code"] = gwErr.Code
		details["retryable"] = gwErr.Retryable
		fields = append(fields, zap.String("processor_code", gwErr.Code))
	}
	s.logFor(ctx).Warn("gateway call failed", fields...)
	return offerdomain.NewError(offerdomain.KindGateway, offerdomain.ErrGateway.Message, details, err)
}

func transitionEvent(offer *offerdomain.Offer, from, to offerdomain.Status, at time.Time) events.Event {
	payload := events.TransitionPayload{
		OfferID:    offer.ID.String(),
		From:       string(from),
		To:         string(to),
		GiverID:    offer.GiverID.String(),
		ReceiverID: offer.ReceiverID.String(),
		Amount:     offer.Amount.String(),
		Currency:   offer.Currency,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
	if offer.ProofReference != nil {
		payload.ProofReference = *offer.ProofReference
	}
	return events.Event{
		OfferID:   offer.ID,
		Type:      "offer." + string(to),
		Payload:   payload.ToMap(),
		DedupeKey: offer.ID.String() + ":" + string(to),
	}
}

func (s *Service) audit(ctx context.Context, actor offerdomain.Actor, action string, offer *offerdomain.Offer, metadata map[string]any) {
	if s.auditSvc == nil || offer == nil {
		return
	}
	targetID := offer.ID.String()
	var actorID *string
	if actor.ID != "" {
		actorID = &actor.ID
	}
	if err := s.auditSvc.AuditLog(ctx, actor.Type, actorID, action, "offer", &targetID, metadata); err != nil {
		s.logFor(ctx).Warn("failed to write offer audit log",
			zap.String("offer_id", targetID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func userActor(id snowflake.ID) offerdomain.Actor {
	return offerdomain.Actor{Type: string(auditdomain.ActorTypeUser), ID: id.String()}
}

func voidKey(offer *offerdomain.Offer) string {
	return "void:" + offer.GatewayTransactionID
}

// captureKey is unique per attempt so a processor that caches failed
// responses by key does not replay the first failure on retries.
func captureKey(offer *offerdomain.Offer, attempt int) string {
	return "capture:" + offer.GatewayTransactionID + ":" + strconv.Itoa(attempt)
}
