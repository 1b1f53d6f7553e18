package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnchorMetrics holds metrics for coordinator anchor and session operations.
type AnchorMetrics struct {
	Operations  *prometheus.CounterVec
	Resolved    prometheus.Counter
	Transitions *prometheus.CounterVec
}

func NewAnchorMetrics(reg prometheus.Registerer) *AnchorMetrics {
	m := &AnchorMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "operations_total",
			Help:      "Total number of anchor operations, by operation and result.",
		}, []string{"op", "result"}),
		Resolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "anchor",
			Name:      "resolved_total",
			Help:      "Total number of persisted anchors resolved from downloaded records.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total number of AR session state transitions, by target state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.Operations, m.Resolved, m.Transitions)
	return m
}

func (m *AnchorMetrics) Operation(op string, err error) {
	m.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *AnchorMetrics) AnchorsResolved(n int) {
	m.Resolved.Add(float64(n))
}

func (m *AnchorMetrics) SessionTransition(state string) {
	m.Transitions.WithLabelValues(state).Inc()
}
