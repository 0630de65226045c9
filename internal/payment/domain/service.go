package domain

import (
	"context"
	"errors"
	"net/http"
)

// Service ingests processor webhooks and hands verified events to the
// offer reconciler.
type Service interface {
	// IngestWebhook returns nil once the event has been recorded, including
	// events that are ignored or contradict local state. A replayed event
	// yields ErrEventAlreadyProcessed.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

// Rejections raised before an event reaches the reconciler.
var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
)

// ErrEventAlreadyProcessed is acknowledged to the gateway like a success.
var ErrEventAlreadyProcessed = errors.New("event_already_processed")
