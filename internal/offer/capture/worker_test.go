package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/escrow/internal/clock"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"github.com/smallbiznis/escrow/internal/offer/offertest"
	"github.com/smallbiznis/escrow/internal/offer/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingCapturer struct {
	calls []snowflake.ID
	errs  map[snowflake.ID]error
}

func (c *recordingCapturer) RequestCapture(_ context.Context, id snowflake.ID) (*offerdomain.Offer, error) {
	c.calls = append(c.calls, id)
	if err := c.errs[id]; err != nil {
		return nil, err
	}
	return &offerdomain.Offer{ID: id}, nil
}

func insertProofSubmitted(t *testing.T, db *gorm.DB, id snowflake.ID, state offerdomain.CaptureState, attempts int) {
	t.Helper()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	offer := &offerdomain.Offer{
		ID:                   id,
		GiverID:              1,
		ReceiverID:           2,
		Amount:               decimal.NewFromInt(10),
		Currency:             "TRY",
		Status:               offerdomain.StatusProofSubmitted,
		GatewayProvider:      offertest.Provider,
		GatewayPreAuthToken:  "tok_" + id.String(),
		GatewayTransactionID: "txn_" + id.String(),
		CaptureState:         state,
		CaptureAttempts:      attempts,
		Metadata:             datatypes.JSONMap{},
		CreatedAt:            now,
		UpdatedAt:            now.Add(time.Duration(id) * time.Second),
	}
	if err := db.Create(offer).Error; err != nil {
		t.Fatalf("insert offer: %v", err)
	}
}

func TestRunOnceRetriesFailedCaptures(t *testing.T) {
	db := offertest.NewDB(t)
	insertProofSubmitted(t, db, 1, offerdomain.CaptureStateFailed, 1)
	insertProofSubmitted(t, db, 2, offerdomain.CaptureStateRequested, 1)
	insertProofSubmitted(t, db, 3, offerdomain.CaptureStateFailed, 5)
	insertProofSubmitted(t, db, 4, offerdomain.CaptureStateFailed, 2)

	capturer := &recordingCapturer{errs: map[snowflake.ID]error{
		4: offerdomain.NewConflict(snowflake.ID(4), offerdomain.StatusProofSubmitted),
	}}
	worker := NewWorker(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repository.Provide(),
		Capturer: capturer,
		Config:   Config{BatchSize: 10, PollInterval: time.Second, MaxAttempts: 5},
	})

	requested, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if requested != 1 {
		t.Fatalf("expected 1 requested capture, got %d", requested)
	}
	if len(capturer.calls) != 2 || capturer.calls[0] != 1 || capturer.calls[1] != 4 {
		t.Fatalf("unexpected capture calls %v", capturer.calls)
	}
}

func TestRunOnceRequiresDependencies(t *testing.T) {
	worker := NewWorker(Params{Log: zap.NewNop()})
	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error without dependencies")
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	db := offertest.NewDB(t)
	insertProofSubmitted(t, db, 1, offerdomain.CaptureStateFailed, 1)
	insertProofSubmitted(t, db, 2, offerdomain.CaptureStateFailed, 1)

	capturer := &recordingCapturer{errs: map[snowflake.ID]error{1: errors.New("gateway down")}}
	worker := NewWorker(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repository.Provide(),
		Capturer: capturer,
	})
	requested, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if requested != 1 || len(capturer.calls) != 2 {
		t.Fatalf("expected both offers attempted, got requested=%d calls=%v", requested, capturer.calls)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BatchSize != 25 || cfg.PollInterval != 30*time.Second || cfg.MaxAttempts != 5 || cfg.UnclaimedGrace != 2*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestRunOnceRecoversUnclaimedAndExpiredCaptures(t *testing.T) {
	db := offertest.NewDB(t)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	insertProofSubmitted(t, db, 10, offerdomain.CaptureStateNone, 0)
	insertProofSubmitted(t, db, 11, offerdomain.CaptureStateInFlight, 1)
	insertProofSubmitted(t, db, 100, offerdomain.CaptureStateNone, 0)
	insertProofSubmitted(t, db, 120, offerdomain.CaptureStateInFlight, 1)

	capturer := &recordingCapturer{}
	worker := NewWorker(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repository.Provide(),
		Capturer: capturer,
		Clock:    clock.FixedClock{At: base.Add(150 * time.Second)},
		Config:   Config{BatchSize: 10, PollInterval: time.Second, MaxAttempts: 5, UnclaimedGrace: 2 * time.Minute},
	})

	requested, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if requested != 2 {
		t.Fatalf("expected 2 requested captures, got %d", requested)
	}
	if len(capturer.calls) != 2 || capturer.calls[0] != 10 || capturer.calls[1] != 11 {
		t.Fatalf("expected unclaimed and expired offers only, got %v", capturer.calls)
	}
}
