package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// WorkflowMetrics records order state machine activity.
type WorkflowMetrics struct {
	transitions    *prometheus.CounterVec
	reconciliation *prometheus.HistogramVec
	submissions    *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order state transitions by kind, target state and outcome.",
	}, []string{"kind", "to", "outcome"})
	reconciliation := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_reconciliation_duration_seconds",
		Help:    "Duration of stock reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_submissions_total",
		Help: "Submitted orders by kind.",
	}, []string{"kind"})
	reg.MustRegister(transitions, reconciliation, submissions)
	return &WorkflowMetrics{
		transitions:    transitions,
		reconciliation: reconciliation,
		submissions:    submissions,
	}
}

// IncTransition counts one transition attempt.
func (m *WorkflowMetrics) IncTransition(kind, to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(kind), normalizeLabel(to), normalizeLabel(outcome)).Inc()
}

// ObserveReconciliation records how long one reconciliation run took.
func (m *WorkflowMetrics) ObserveReconciliation(mode string, duration time.Duration) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// IncSubmission counts one submitted order.
func (m *WorkflowMetrics) IncSubmission(kind string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
