package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ListFilter narrows an audit trail. Empty fields match everything; entries
// come back oldest first.
type ListFilter struct {
	TargetType string
	TargetID   string
	Action     string
	ActorType  string
	Since      *time.Time
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
