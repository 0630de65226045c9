package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CaptureState tracks the capture request issued after proof submission. It
// never drives Status; only the reconciler completes an offer.
type CaptureState string

const (
	CaptureStateNone      CaptureState = ""
	CaptureStateInFlight  CaptureState = "in_flight"
	CaptureStateRequested CaptureState = "requested"
	CaptureStateFailed    CaptureState = "failed"
)

// Metadata keys written once at creation.
const (
	MetadataPremium             = "premium"
	MetadataListingMinimumPrice = "listing_minimum_price"
	MetadataIsPrivileged        = "is_privileged"
	MetadataRequestedCurrency   = "requested_currency"
	MetadataPreAuthRequestID    = "preauth_request_id"
)

// Offer is a monetary gift from a giver to a receiver, held by a gateway
// pre-authorization until proof is submitted and capture is confirmed.
type Offer struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	GiverID              snowflake.ID      `gorm:"not null;index" json:"giver_id"`
	ReceiverID           snowflake.ID      `gorm:"not null;index:idx_offers_receiver_status,priority:1" json:"receiver_id"`
	ListingID            *snowflake.ID     `gorm:"index" json:"listing_id,omitempty"`
	Amount               decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency             string            `gorm:"type:varchar(3);not null" json:"currency"`
	Category             string            `gorm:"type:varchar(64)" json:"category,omitempty"`
	Message              string            `gorm:"type:text" json:"message,omitempty"`
	Status               Status            `gorm:"type:varchar(32);not null;index:idx_offers_receiver_status,priority:2" json:"status"`
	GatewayProvider      string            `gorm:"type:varchar(32);not null" json:"gateway_provider"`
	GatewayPreAuthToken  string            `gorm:"type:varchar(191);not null" json:"-"`
	GatewayTransactionID string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"gateway_transaction_id"`
	ProofReference       *string           `gorm:"type:varchar(512)" json:"proof_reference,omitempty"`
	CaptureState         CaptureState      `gorm:"type:varchar(16);not null;default:''" json:"capture_state,omitempty"`
	CaptureAttempts      int               `gorm:"not null;default:0" json:"capture_attempts"`
	LastCaptureError     *string           `gorm:"type:text" json:"last_capture_error,omitempty"`
	CaptureRequestedAt   *time.Time        `json:"capture_requested_at,omitempty"`
	DisputeReason        *string           `gorm:"type:text" json:"dispute_reason,omitempty"`
	Metadata             datatypes.JSONMap `gorm:"not null" json:"metadata"`
	CreatedAt            time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null" json:"updated_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	TerminatedAt         *time.Time        `json:"terminated_at,omitempty"`
	DisputedAt           *time.Time        `json:"disputed_at,omitempty"`
}

func (Offer) TableName() string { return "offers" }

// IsParty reports whether userID is the giver or the receiver.
func (o *Offer) IsParty(userID snowflake.ID) bool {
	return o != nil && userID != 0 && (o.GiverID == userID || o.ReceiverID == userID)
}

// Transition is one conditional status change. Fields other than the ids and
// statuses are applied only when set.
type Transition struct {
	OfferID        snowflake.ID
	From           Status
	To             Status
	At             time.Time
	ProofReference *string
	DisputeReason  *string
}

// Anomaly records a gateway event that could not be applied to local state
// and needs manual review.
type Anomaly struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	OfferID         snowflake.ID      `gorm:"not null;index" json:"offer_id"`
	Provider        string            `gorm:"type:varchar(32);not null;uniqueIndex:idx_anomalies_provider_event,priority:1" json:"provider"`
	ProviderEventID string            `gorm:"type:varchar(191);not null;uniqueIndex:idx_anomalies_provider_event,priority:2" json:"provider_event_id"`
	EventType       string            `gorm:"type:varchar(64);not null" json:"event_type"`
	ObservedStatus  Status            `gorm:"type:varchar(32);not null" json:"observed_status"`
	Reason          string            `gorm:"type:text;not null" json:"reason"`
	Details         datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}

func (Anomaly) TableName() string { return "offer_reconciliation_anomalies" }
