package capture

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrow/internal/clock"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Capturer requests capture for a single offer.
type Capturer interface {
	RequestCapture(ctx context.Context, offerID snowflake.ID) (*offerdomain.Offer, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     offerdomain.Repository
	Capturer Capturer
	Clock    clock.Clock           `optional:"true"`
	Config   Config                `optional:"true"`
	Metrics  *metrics.OfferMetrics `optional:"true"`
}

// Worker retries capture for offers waiting in proofSubmitted. Besides failed
// requests it picks up offers whose capture was never claimed after proof
// submission or whose claim lease expired.
type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     offerdomain.Repository
	capturer Capturer
	clock    clock.Clock
	metrics  *metrics.OfferMetrics
	cfg      Config
}

func NewWorker(p Params) *Worker {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("offer.capture"),
		repo:     p.Repo,
		capturer: p.Capturer,
		clock:    clk,
		metrics:  p.Metrics,
		cfg:      p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("capture retry run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce retries one batch and returns how many captures were requested.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.repo == nil || w.capturer == nil {
		return 0, errors.New("capture_worker_unavailable")
	}

	now := w.clock.Now()
	rows, err := w.repo.ListCaptureRetryable(ctx, w.db, offerdomain.CaptureRetryFilter{
		MaxAttempts:     w.cfg.MaxAttempts,
		Limit:           w.cfg.BatchSize,
		UnclaimedBefore: now.Add(-w.cfg.UnclaimedGrace),
		InFlightBefore:  now.Add(-offerdomain.CaptureLease),
	})
	if err != nil {
		return 0, err
	}

	requested := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return requested, ctx.Err()
		}
		_, err := w.capturer.RequestCapture(ctx, row.ID)
		switch {
		case err == nil:
			requested++
			w.metrics.IncCaptureRetry("requested")
		case errors.Is(err, offerdomain.ErrConflict):
			w.metrics.IncCaptureRetry("skipped")
		default:
			w.metrics.IncCaptureRetry("failed")
			w.log.Warn("capture retry failed",
				zap.String("offer_id", row.ID.String()),
				zap.Int("attempts", row.CaptureAttempts+1),
				zap.Error(err),
			)
		}
	}
	return requested, nil
}
