package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CaptureLease bounds how long an in-flight capture claim is honoured. A
// claim older than this is treated as abandoned and may be taken again.
const CaptureLease = time.Minute

// CaptureClaim takes the capture slot of a proofSubmitted offer. Attempts is
// the attempt count the caller read; the claim fails if it has moved.
type CaptureClaim struct {
	OfferID  snowflake.ID
	Attempts int
	At       time.Time
}

// Attempt is the number of the attempt this claim starts.
func (c CaptureClaim) Attempt() int { return c.Attempts + 1 }

// CaptureOutcome is the result of a capture request recorded against the
// in-flight claim for Attempt.
type CaptureOutcome struct {
	OfferID snowflake.ID
	Attempt int
	State   CaptureState
	Error   *string
	At      time.Time
}

// CaptureRetryFilter selects proofSubmitted offers that need a capture
// attempt: failed requests, claims never taken, and expired claims.
type CaptureRetryFilter struct {
	MaxAttempts int
	Limit       int
	// Unclaimed rows are picked up once last updated before this instant.
	UnclaimedBefore time.Time
	// In-flight rows are picked up once claimed before this instant.
	InFlightBefore time.Time
}

// Repository persists offers. Every status change goes through Transition,
// which only writes when the stored status equals t.From.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, offer *Offer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Offer, error)
	FindByTransactionID(ctx context.Context, db *gorm.DB, provider, transactionID string) (*Offer, error)
	ListByReceiver(ctx context.Context, db *gorm.DB, receiverID snowflake.ID, statuses []Status) ([]*Offer, error)
	Transition(ctx context.Context, db *gorm.DB, t Transition) (bool, error)
	ClaimCapture(ctx context.Context, db *gorm.DB, claim CaptureClaim) (bool, error)
	RecordCapture(ctx context.Context, db *gorm.DB, outcome CaptureOutcome) error
	ListCaptureRetryable(ctx context.Context, db *gorm.DB, filter CaptureRetryFilter) ([]*Offer, error)
	// InsertAnomaly reports false when the gateway event already has an
	// anomaly row.
	InsertAnomaly(ctx context.Context, db *gorm.DB, anomaly *Anomaly) (bool, error)
}
