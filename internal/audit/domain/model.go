package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeSystem  ActorType = "system"
	ActorTypeGateway ActorType = "gateway"
)

// AuditLog captures an immutable record of an offer or payment action.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	ActorType  string            `gorm:"type:varchar(32);not null"`
	ActorID    *string           `gorm:"type:varchar(64)"`
	Action     string            `gorm:"type:varchar(64);not null;index"`
	TargetType string            `gorm:"type:varchar(32);not null;index:idx_audit_logs_target,priority:1"`
	TargetID   *string           `gorm:"type:varchar(64);index:idx_audit_logs_target,priority:2"`
	Metadata   datatypes.JSONMap `gorm:"not null"`
	RequestID  *string           `gorm:"type:varchar(64)"`
	IPAddress  *string           `gorm:"type:varchar(64)"`
	UserAgent  *string           `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"not null;index"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
