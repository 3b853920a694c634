// Package metrics holds the drive host's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the drive host on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	filesUploaded      prometheus.Counter
	filesUpdated       prometheus.Counter
	versionConflicts   prometheus.Counter
	payloadBytesServed prometheus.Counter
	requestDuration    prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		filesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_files_uploaded_total",
			Help: "Total number of files uploaded",
		}),
		filesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_files_updated_total",
			Help: "Total number of file headers updated",
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_version_conflicts_total",
			Help: "Total number of updates rejected for a stale version tag",
		}),
		payloadBytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drive_payload_bytes_served_total",
			Help: "Total payload bytes written to clients",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drive_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.filesUploaded,
		m.filesUpdated,
		m.versionConflicts,
		m.payloadBytesServed,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) IncFilesUploaded()    { m.filesUploaded.Inc() }
func (m *Metrics) IncFilesUpdated()     { m.filesUpdated.Inc() }
func (m *Metrics) IncVersionConflicts() { m.versionConflicts.Inc() }

// AddPayloadBytes counts payload bytes served.
func (m *Metrics) AddPayloadBytes(n int) {
	m.payloadBytesServed.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
