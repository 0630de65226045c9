package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/clock"
	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/observability/logger"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/escrow/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Adapters   []gatewaydomain.Adapter `group:"webhook_adapters"`
	Reconciler offerdomain.Reconciler
	Clock      clock.Clock
	Metrics    *metrics.OfferMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	adapters   map[string]gatewaydomain.WebhookAdapter
	reconciler offerdomain.Reconciler
	clock      clock.Clock
	metrics    *metrics.OfferMetrics
}

func NewService(p Params) paymentdomain.Service {
	adapters := make(map[string]gatewaydomain.WebhookAdapter, len(p.Adapters))
	for _, adapter := range p.Adapters {
		if adapter == nil {
			continue
		}
		adapters[strings.ToLower(strings.TrimSpace(adapter.Provider()))] = adapter
	}

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		repo:       p.Repo,
		adapters:   adapters,
		reconciler: p.Reconciler,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	adapter, ok := s.adapters[provider]
	if !ok {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	log := logger.WithContext(s.log, ctx).With(zap.String("provider", provider))

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		if errors.Is(err, gatewaydomain.ErrInvalidSignature) {
			log.Warn("payment webhook signature rejected")
			s.metrics.IncWebhookEvent("unknown", "unverified")
			return offerdomain.NewError(offerdomain.KindUnverifiedEvent, offerdomain.ErrUnverifiedEvent.Message, nil, err)
		}
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			log.Debug("payment webhook event type ignored")
			return nil
		}
		if errors.Is(err, gatewaydomain.ErrInvalidPayload) {
			return paymentdomain.ErrInvalidPayload
		}
		return paymentdomain.ErrInvalidEvent
	}
	if err := validateEvent(event); err != nil {
		return err
	}
	event.Provider = provider
	event.Verified = true

	now := s.clock.Now()
	received := gatewaydomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       string(event.Type),
		TransactionID:   event.TransactionID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return fmt.Errorf("store gateway event: %w", err)
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return fmt.Errorf("load gateway event: %w", err)
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			log.Debug("payment webhook already processed", zap.String("provider_event_id", event.ProviderEventID))
			s.metrics.IncWebhookEvent(string(event.Type), "already_processed")
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	result, err := s.reconciler.Reconcile(ctx, event)
	if err != nil && offerdomain.KindOf(err) != offerdomain.KindReconciliationAnomaly {
		log.Error("payment webhook reconciliation failed",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, string(result.Outcome), s.clock.Now()); err != nil {
		return fmt.Errorf("mark gateway event processed: %w", err)
	}
	log.Info("payment webhook processed",
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("event_type", string(event.Type)),
		zap.String("outcome", string(result.Outcome)),
	)
	return nil
}

func validateEvent(event *gatewaydomain.Event) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.TransactionID = strings.TrimSpace(event.TransactionID)
	if event.TransactionID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if !event.Type.Valid() {
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}
