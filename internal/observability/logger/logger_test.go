package logger

import (
	"context"
	"testing"

	obsctx "github.com/smallbiznis/escrow/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsTraceRequestAndActor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = obsctx.WithRequest(ctx, obsctx.Request{ID: "req-7", ActorType: "user", ActorID: "200"})

	WithContext(zap.New(core), ctx).Info("offer accepted")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	want := map[string]string{
		"trace_id":   traceID.String(),
		"span_id":    spanID.String(),
		"request_id": "req-7",
		"actor":      "user:200",
	}
	for key, value := range want {
		if fields[key] != value {
			t.Fatalf("expected %s=%q, got %v", key, value, fields[key])
		}
	}
}

func TestWithContextWithoutValuesReturnsSameLogger(t *testing.T) {
	log := zap.NewNop()
	if got := WithContext(log, context.Background()); got != log {
		t.Fatalf("expected the logger to be returned unchanged")
	}
}

func TestFromContextUsesGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	FromContext(obsctx.WithRequestID(context.Background(), "req-global")).Info("webhook received")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["request_id"] != "req-global" {
		t.Fatalf("expected global logger with request id, got %v", logs.All())
	}
}
