package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventType is the normalized gateway callback kind.
type EventType string

const (
	EventAuthorizationConfirmed EventType = "authorization.confirmed"
	EventAuthorizationFailed    EventType = "authorization.failed"
	EventCaptureConfirmed       EventType = "capture.confirmed"
	EventCaptureFailed          EventType = "capture.failed"
	EventVoided                 EventType = "preauth.voided"
	EventDisputeOpened          EventType = "dispute.opened"
)

func (t EventType) Valid() bool {
	switch t {
	case EventAuthorizationConfirmed,
		EventAuthorizationFailed,
		EventCaptureConfirmed,
		EventCaptureFailed,
		EventVoided,
		EventDisputeOpened:
		return true
	default:
		return false
	}
}

// IsReversal reports whether the event releases or returns funds.
func (t EventType) IsReversal() bool {
	switch t {
	case EventAuthorizationFailed, EventCaptureFailed, EventVoided:
		return true
	default:
		return false
	}
}

// Event is the canonical gateway callback parsed by adapters.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            EventType
	TransactionID   string
	FailureCode     string
	FailureMessage  string
	OccurredAt      time.Time
	RawPayload      []byte

	// Verified is set only after the adapter accepted the signature.
	Verified bool
}

// EventRecord stores each inbound callback once per provider event id.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_gateway_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(191);not null;uniqueIndex:ux_gateway_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(64);not null" json:"event_type"`
	TransactionID   string         `gorm:"type:varchar(191);not null;index" json:"transaction_id"`
	Payload         datatypes.JSON `gorm:"not null" json:"payload"`
	Outcome         *string        `gorm:"type:varchar(32)" json:"outcome,omitempty"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "gateway_events" }
