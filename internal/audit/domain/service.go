package domain

import (
	"context"
	"errors"
)

// Service records audit entries. Actor and request details missing from the
// arguments are taken from the request identity on ctx. Sensitive metadata
// values are masked before they are stored.
type Service interface {
	AuditLog(
		ctx context.Context,
		actorType string,
		actorID *string,
		action string,
		targetType string,
		targetID *string,
		metadata map[string]any,
	) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidTargetType = errors.New("invalid_target_type")
)
