package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// streamRoute is long-lived; its duration is the connection lifetime, not latency.
const streamRoute = "/screens/:id/stream"

// HTTPMetrics tracks API traffic by resource (screens, containers, models) and route template.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "resource", "route", "status_code"}
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds, excluding state streams.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, labels),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, labels),
		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of API requests currently being processed.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlightGauge)
	return m
}

// Resource names the API resource a route template belongs to: "screens",
// "containers", "models", or "other". Unmatched requests are "unmatched".
func Resource(route string) string {
	if route == "" {
		return "unmatched"
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(route, "/"), "/")
	switch first {
	case "screens", "containers", "models":
		return first
	default:
		return "other"
	}
}

// Middleware records requests by route template, so screen and container ids never
// become label values. /metrics and /health/* are skipped.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "/metrics" || strings.HasPrefix(route, "/health/") {
				return next(c)
			}
			resource := Resource(route)
			if route == "" {
				route = "unmatched"
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			m.InFlightGauge.Dec()

			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			m.RequestsTotal.WithLabelValues(method, resource, route, status).Inc()
			if route != streamRoute {
				m.RequestDuration.WithLabelValues(method, resource, route, status).Observe(elapsed.Seconds())
			}
			return err
		}
	}
}
