package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Listing is the item or moment an offer can target. It is owned by the
// catalog service; this subsystem only reads it.
type Listing struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	OwnerID      snowflake.ID    `gorm:"not null;index" json:"owner_id"`
	Category     string          `gorm:"type:varchar(64);not null" json:"category"`
	MinimumPrice decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"minimum_price"`
	Currency     string          `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (Listing) TableName() string { return "listings" }

// Lookup reads listing requirements.
type Lookup interface {
	GetListing(ctx context.Context, id snowflake.ID) (*Listing, error)
}

var ErrNotFound = errors.New("listing_not_found")
