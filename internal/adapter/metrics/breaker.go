package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics tracks document store circuit breaker state (0 closed, 1 half-open, 2 open).
type BreakerMetrics struct {
	State    *prometheus.GaugeVec
	Rejected *prometheus.CounterVec
}

func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "rejected_total",
			Help:      "Total number of calls rejected by an open circuit breaker.",
		}, []string{"name"}),
	}

	reg.MustRegister(m.State, m.Rejected)
	return m
}

func (m *BreakerMetrics) StateChanged(name string, state int) {
	m.State.WithLabelValues(name).Set(float64(state))
}

func (m *BreakerMetrics) CallRejected(name string) {
	m.Rejected.WithLabelValues(name).Inc()
}
