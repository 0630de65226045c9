package events

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/clock"
	"github.com/smallbiznis/escrow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sink delivers outbox events to downstream consumers. Deliver must be
// idempotent per event ID; a batch is retried whole when it fails.
type Sink interface {
	Deliver(ctx context.Context, batch []OfferEvent) error
}

// LogSink writes each event to the structured log. It is the default sink
// until a broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("events.sink")}
}

func (s *LogSink) Deliver(_ context.Context, batch []OfferEvent) error {
	for _, row := range batch {
		s.log.Info("offer event",
			zap.String("event_id", row.ID.String()),
			zap.String("offer_id", row.OfferID.String()),
			zap.String("event_type", row.EventType),
			zap.Any("payload", map[string]any(row.Payload)),
		)
	}
	return nil
}

// RelayConfig controls how often the outbox is drained.
type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

func NewRelayConfig(cfg config.Config) RelayConfig {
	return RelayConfig{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval,
	}
}

type RelayParams struct {
	fx.In

	Outbox *Outbox
	Sink   Sink
	Log    *zap.Logger
	Clock  clock.Clock
	Config RelayConfig `optional:"true"`
}

// Relay moves committed outbox rows to the sink in creation order.
type Relay struct {
	outbox *Outbox
	sink   Sink
	log    *zap.Logger
	clock  clock.Clock
	cfg    RelayConfig
}

func NewRelay(p RelayParams) *Relay {
	cfg := p.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Relay{
		outbox: p.Outbox,
		sink:   p.Sink,
		log:    p.Log.Named("events.relay"),
		clock:  p.Clock,
		cfg:    cfg,
	}
}

func (r *Relay) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("outbox relay run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce delivers one batch and returns how many events were marked
// published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r.outbox == nil || r.sink == nil {
		return 0, errors.New("relay_unavailable")
	}
	batch, err := r.outbox.ListUnpublished(ctx, r.cfg.BatchSize)
	if err != nil || len(batch) == 0 {
		return 0, err
	}
	if err := r.sink.Deliver(ctx, batch); err != nil {
		return 0, err
	}

	ids := make([]snowflake.ID, 0, len(batch))
	for _, row := range batch {
		ids = append(ids, row.ID)
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.clock.Now()); err != nil {
		return 0, err
	}
	return len(ids), nil
}
