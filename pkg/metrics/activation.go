package metrics

import "github.com/prometheus/client_golang/prometheus"

// ActivationMetrics counts the offer redemption lifecycle.
type ActivationMetrics struct {
	requested *prometheus.CounterVec
	completed *prometheus.CounterVec
	payments  *prometheus.CounterVec
	pending   prometheus.Gauge
}

// NewActivationMetrics registers the activation metrics on the provided registerer.
func NewActivationMetrics(reg prometheus.Registerer) *ActivationMetrics {
	if reg == nil {
		return &ActivationMetrics{}
	}
	requested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissluca_activation_requests_total",
		Help: "Activation requests by redeemable kind and entry path.",
	}, []string{"kind", "path"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissluca_activations_completed_total",
		Help: "Activation records written.",
	}, []string{"kind"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swissluca_payment_outcomes_total",
		Help: "Terminal payment signals by purpose and outcome.",
	}, []string{"purpose", "outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swissluca_pending_payment_contexts",
		Help: "Payment contexts currently awaiting a gateway signal.",
	})
	reg.MustRegister(requested, completed, payments, pending)
	return &ActivationMetrics{
		requested: requested,
		completed: completed,
		payments:  payments,
		pending:   pending,
	}
}

func (m *ActivationMetrics) IncRequested(kind, path string) {
	if m == nil || m.requested == nil {
		return
	}
	m.requested.WithLabelValues(normalizeLabel(kind), normalizeLabel(path)).Inc()
}

func (m *ActivationMetrics) IncCompleted(kind string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *ActivationMetrics) IncPaymentOutcome(purpose, outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(purpose), normalizeLabel(outcome)).Inc()
}

// normalizeLabel keeps empty values from producing a blank label.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// SetPending records the current size of the pending payment map.
func (m *ActivationMetrics) SetPending(n int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}
