package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Push delivery
	PushBatchesTotal  *prometheus.CounterVec
	PushMessagesTotal *prometheus.CounterVec

	// Receipts
	ReceiptsTotal *prometheus.CounterVec

	// Authorization decisions
	PermissionDenialsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "school_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PushBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_push_batches_total",
				Help: "Push notification batches handed to a sender",
			},
			[]string{"sender", "status"},
		),
		PushMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_push_messages_total",
				Help: "Push notifications per device token by outcome",
			},
			[]string{"sender", "outcome"},
		),
		ReceiptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_receipts_total",
				Help: "Receipt renders by renderer and outcome",
			},
			[]string{"renderer", "outcome"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_permission_denials_total",
				Help: "Requests rejected by the permission check",
			},
			[]string{"module", "action"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PushBatchesTotal,
		m.PushMessagesTotal,
		m.ReceiptsTotal,
		m.PermissionDenialsTotal,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
