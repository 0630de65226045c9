package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys that may carry gateway credentials or user content.
var redactedKeys = []string{
	"token",
	"secret",
	"signature",
	"authorization",
	"proof",
	"message",
}

// SafeAttributes drops attributes whose key may carry credentials or user text.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	kept := attrs[:0:0]
	for _, attr := range attrs {
		if redacted(string(attr.Key)) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

// SafeError reduces err to a label safe to export: its kind when it has one,
// otherwise its Go type.
func SafeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New("timeout")
	case errors.Is(err, context.Canceled):
		return errors.New("canceled")
	}
	var kinded interface{ KindLabel() string }
	if errors.As(err, &kinded) {
		return errors.New(kinded.KindLabel())
	}
	return fmt.Errorf("%T", err)
}

func redacted(key string) bool {
	key = strings.ToLower(key)
	for _, needle := range redactedKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}
