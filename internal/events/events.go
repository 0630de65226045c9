package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Offer lifecycle event types. Each status transition publishes one event
// named offer.<status>.
const (
	EventOfferPendingGatewayApproval = "offer.pendingGatewayApproval"
	EventOfferAuthorized             = "offer.authorized"
	EventOfferPendingProof           = "offer.pendingProof"
	EventOfferProofSubmitted         = "offer.proofSubmitted"
	EventOfferCompleted              = "offer.completed"
	EventOfferCancelled              = "offer.cancelled"
	EventOfferDeclined               = "offer.declined"
	EventOfferRefunded               = "offer.refunded"
	EventOfferDisputed               = "offer.disputed"

	EventOfferReconciliationAnomaly = "offer.reconciliation_anomaly"
)

// OfferEvent is a row in the offer_events outbox.
type OfferEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	OfferID     snowflake.ID      `gorm:"not null;index"`
	EventType   string            `gorm:"type:varchar(64);not null"`
	Payload     datatypes.JSONMap `gorm:"not null"`
	DedupeKey   *string           `gorm:"type:varchar(128);uniqueIndex"`
	Published   bool              `gorm:"not null;default:false;index"`
	CreatedAt   time.Time         `gorm:"not null"`
	PublishedAt *time.Time
}

func (OfferEvent) TableName() string { return "offer_events" }

// TransitionPayload captures the minimal data consumers need to react to a
// status change.
type TransitionPayload struct {
	OfferID        string `json:"offer_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	GiverID        string `json:"giver_id"`
	ReceiverID     string `json:"receiver_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	ProofReference string `json:"proof_reference,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p TransitionPayload) ToMap() map[string]any {
	payload := map[string]any{
		"offer_id":    p.OfferID,
		"from":        p.From,
		"to":          p.To,
		"giver_id":    p.GiverID,
		"receiver_id": p.ReceiverID,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"occurred_at": p.OccurredAt,
	}
	if p.ProofReference != "" {
		payload["proof_reference"] = p.ProofReference
	}
	return payload
}
