package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOfferMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewOfferMetrics(registry, Config{ServiceName: "escrow", Environment: "test"})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.IncTransition("authorized", "pendingProof")
	m.IncTransition("authorized", "pendingProof")
	m.IncGatewayCall("void", errors.New("boom"))

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("authorized", "pendingProof")); got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.gatewayCalls.WithLabelValues("void", "failure")); got != 1 {
		t.Fatalf("expected 1 failed gateway call, got %v", got)
	}
}

func TestOfferMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewOfferMetrics(registry, Config{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewOfferMetrics(registry, Config{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilOfferMetricsIsSafe(t *testing.T) {
	var m *OfferMetrics
	m.IncTransition("a", "b")
	m.IncAnomaly("capture.confirmed", "pendingProof")
}
