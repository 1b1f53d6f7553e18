package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics counts blueprint repository cache traffic, by collection.
type CacheMetrics struct {
	Hits          *prometheus.CounterVec
	Misses        *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document_cache",
			Name:      "hits_total",
			Help:      "Total number of document cache hits, by collection.",
		}, []string{"collection"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document_cache",
			Name:      "misses_total",
			Help:      "Total number of document cache misses, by collection.",
		}, []string{"collection"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "document_cache",
			Name:      "invalidations_total",
			Help:      "Total number of document cache invalidations, by collection.",
		}, []string{"collection"}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	return m
}

func (m *CacheMetrics) Hit(collection string)  { m.Hits.WithLabelValues(collection).Inc() }
func (m *CacheMetrics) Miss(collection string) { m.Misses.WithLabelValues(collection).Inc() }

func (m *CacheMetrics) Invalidated(collection string) {
	m.Invalidations.WithLabelValues(collection).Inc()
}
