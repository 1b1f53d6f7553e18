package metrics

import "github.com/prometheus/client_golang/prometheus"

// ScreenMetrics holds metrics for live coordinators and their state streams.
type ScreenMetrics struct {
	ActiveScreens   prometheus.Gauge
	ActiveStreams   prometheus.Gauge
	SnapshotsPushed prometheus.Counter
}

func NewScreenMetrics(reg prometheus.Registerer) *ScreenMetrics {
	m := &ScreenMetrics{
		ActiveScreens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "screens",
			Name:      "active",
			Help:      "Number of live screens (session coordinators).",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active state stream WebSocket connections.",
		}),
		SnapshotsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "snapshots_pushed_total",
			Help:      "Total number of session snapshots written to state streams.",
		}),
	}

	reg.MustRegister(m.ActiveScreens, m.ActiveStreams, m.SnapshotsPushed)
	return m
}
