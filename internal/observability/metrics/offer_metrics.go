package metrics

import "github.com/prometheus/client_golang/prometheus"

// OfferMetrics tracks offer lifecycle, gateway and webhook outcomes.
type OfferMetrics struct {
	transitions   *prometheus.CounterVec
	gatewayCalls  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	anomalies     *prometheus.CounterVec
	captureRetry  *prometheus.CounterVec
}

// NewOfferMetrics registers the offer collectors on registerer.
func NewOfferMetrics(registerer prometheus.Registerer, cfg Config) (*OfferMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := constLabels(cfg)

	m := &OfferMetrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "escrow_offer_transitions_total",
				Help:        "Applied offer status transitions.",
				ConstLabels: constLabels,
			},
			[]string{"from", "to"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "escrow_gateway_calls_total",
				Help:        "Payment gateway calls by operation and result.",
				ConstLabels: constLabels,
			},
			[]string{"operation", "result"}, // success | failure
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "escrow_webhook_events_total",
				Help:        "Reconciled gateway webhook events by type and outcome.",
				ConstLabels: constLabels,
			},
			[]string{"type", "outcome"},
		),
		anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "escrow_reconciliation_anomalies_total",
				Help:        "Gateway events that contradict local offer state and need manual review.",
				ConstLabels: constLabels,
			},
			[]string{"type", "status"},
		),
		captureRetry: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "escrow_capture_retries_total",
				Help:        "Capture retry attempts by result.",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
	}

	for _, collector := range []prometheus.Collector{m.transitions, m.gatewayCalls, m.webhookEvents, m.anomalies, m.captureRetry} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *OfferMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *OfferMetrics) IncGatewayCall(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.gatewayCalls.WithLabelValues(operation, result).Inc()
}

func (m *OfferMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *OfferMetrics) IncAnomaly(eventType, status string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(eventType, status).Inc()
}

func (m *OfferMetrics) IncCaptureRetry(result string) {
	if m == nil {
		return
	}
	m.captureRetry.WithLabelValues(result).Inc()
}
