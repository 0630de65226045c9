package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	offerdomain "github.com/smallbiznis/escrow/internal/offer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() offerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, offer *offerdomain.Offer) error {
	return db.WithContext(ctx).Create(offer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*offerdomain.Offer, error) {
	var offer offerdomain.Offer
	err := db.WithContext(ctx).Where("id = ?", id).Take(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repo) FindByTransactionID(ctx context.Context, db *gorm.DB, provider, transactionID string) (*offerdomain.Offer, error) {
	var offer offerdomain.Offer
	err := db.WithContext(ctx).
		Where("gateway_provider = ? AND gateway_transaction_id = ?", provider, transactionID).
		Take(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repo) ListByReceiver(ctx context.Context, db *gorm.DB, receiverID snowflake.ID, statuses []offerdomain.Status) ([]*offerdomain.Offer, error) {
	query := db.WithContext(ctx).Where("receiver_id = ?", receiverID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []*offerdomain.Offer
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition writes t only if the stored status still equals t.From. It
// reports false when another writer got there first.
func (r *repo) Transition(ctx context.Context, db *gorm.DB, t offerdomain.Transition) (bool, error) {
	if !offerdomain.CanTransition(t.From, t.To) {
		return false, offerdomain.NewConflict(t.OfferID, t.From)
	}
	at := t.At.UTC()
	updates := map[string]any{
		"status":     t.To,
		"updated_at": at,
	}
	switch t.To {
	case offerdomain.StatusCompleted:
		updates["completed_at"] = at
	case offerdomain.StatusCancelled, offerdomain.StatusDeclined, offerdomain.StatusRefunded:
		updates["terminated_at"] = at
	case offerdomain.StatusDisputed:
		updates["disputed_at"] = at
		if t.DisputeReason != nil {
			updates["dispute_reason"] = *t.DisputeReason
		}
	case offerdomain.StatusProofSubmitted:
		if t.ProofReference != nil {
			updates["proof_reference"] = *t.ProofReference
		}
	}

	result := db.WithContext(ctx).
		Model(&offerdomain.Offer{}).
		Where("id = ? AND status = ?", t.OfferID, t.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimCapture marks a capture in flight for an offer awaiting capture. A
// claim older than CaptureLease counts as abandoned. The attempt counter acts
// as the version, so only one caller can hold a given attempt.
func (r *repo) ClaimCapture(ctx context.Context, db *gorm.DB, claim offerdomain.CaptureClaim) (bool, error) {
	at := claim.At.UTC()
	result := db.WithContext(ctx).
		Model(&offerdomain.Offer{}).
		Where("id = ? AND status = ? AND capture_attempts = ?", claim.OfferID, offerdomain.StatusProofSubmitted, claim.Attempts).
		Where(
			db.Where("capture_state IN ?", []offerdomain.CaptureState{offerdomain.CaptureStateNone, offerdomain.CaptureStateFailed}).
				Or("capture_state = ? AND updated_at < ?", offerdomain.CaptureStateInFlight, at.Add(-offerdomain.CaptureLease)),
		).
		Updates(map[string]any{
			"capture_state":    offerdomain.CaptureStateInFlight,
			"capture_attempts": claim.Attempt(),
			"updated_at":       at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RecordCapture stores the outcome of outcome.Attempt. It is a no-op when the
// claim has since been taken over by a later attempt.
func (r *repo) RecordCapture(ctx context.Context, db *gorm.DB, outcome offerdomain.CaptureOutcome) error {
	at := outcome.At.UTC()
	updates := map[string]any{
		"capture_state":      outcome.State,
		"last_capture_error": outcome.Error,
		"updated_at":         at,
	}
	if outcome.State == offerdomain.CaptureStateRequested {
		updates["capture_requested_at"] = at
	}
	return db.WithContext(ctx).
		Model(&offerdomain.Offer{}).
		Where("id = ? AND capture_state = ? AND capture_attempts = ?", outcome.OfferID, offerdomain.CaptureStateInFlight, outcome.Attempt).
		Updates(updates).Error
}

func (r *repo) ListCaptureRetryable(ctx context.Context, db *gorm.DB, filter offerdomain.CaptureRetryFilter) ([]*offerdomain.Offer, error) {
	due := db.Where("capture_state = ?", offerdomain.CaptureStateFailed)
	if !filter.UnclaimedBefore.IsZero() {
		due = due.Or("capture_state = ? AND updated_at < ?", offerdomain.CaptureStateNone, filter.UnclaimedBefore.UTC())
	}
	if !filter.InFlightBefore.IsZero() {
		due = due.Or("capture_state = ? AND updated_at < ?", offerdomain.CaptureStateInFlight, filter.InFlightBefore.UTC())
	}

	query := db.WithContext(ctx).
		Where("status = ?", offerdomain.StatusProofSubmitted).
		Where(due)
	if filter.MaxAttempts > 0 {
		query = query.Where("capture_attempts < ?", filter.MaxAttempts)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []*offerdomain.Offer
	if err := query.Order("updated_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertAnomaly(ctx context.Context, db *gorm.DB, anomaly *offerdomain.Anomaly) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(anomaly)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
