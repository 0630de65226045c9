package repository

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/escrow/internal/audit/domain"
	"gorm.io/gorm"
)

const (
	defaultTrailLimit = 100
	maxTrailLimit     = 500
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	query := db.WithContext(ctx).Model(&auditdomain.AuditLog{})
	for _, eq := range [][2]string{
		{"target_type", filter.TargetType},
		{"target_id", filter.TargetID},
		{"action", filter.Action},
		{"actor_type", filter.ActorType},
	} {
		if value := strings.TrimSpace(eq[1]); value != "" {
			query = query.Where(eq[0]+" = ?", value)
		}
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultTrailLimit
	case limit > maxTrailLimit:
		limit = maxTrailLimit
	}

	var rows []*auditdomain.AuditLog
	err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
