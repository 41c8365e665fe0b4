package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay outcomes.
const (
	OutcomePublished = "published"
	OutcomeRetry     = "retry"
	OutcomeTerminal  = "terminal"
)

// OutboxMetrics records relay activity.
type OutboxMetrics struct {
	relayed *prometheus.CounterVec
	pending prometheus.Gauge
}

// NewOutboxMetrics registers the relay metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	relayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_relayed_total",
		Help: "Outbox rows handled by the relay by event type and outcome.",
	}, []string{"event_type", "outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_events_pending",
		Help: "Outbox rows waiting for publication at the last poll.",
	})
	reg.MustRegister(relayed, pending)
	return &OutboxMetrics{relayed: relayed, pending: pending}
}

func (m *OutboxMetrics) IncRelayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) SetPending(n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}
