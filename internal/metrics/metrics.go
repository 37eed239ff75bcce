// Package metrics defines the Prometheus collectors recorded by table
// operations.
//
// Collectors are registered on a caller-supplied registerer so that
// several stores, or tests, do not collide on the default registry.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	store, _ := coltab.Open(ctx, uri, coltab.WithMetrics(m))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coltab"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Operations counts table operations by name and status (ok/error).
	Operations *prometheus.CounterVec

	// Latency tracks operation latency in seconds.
	Latency *prometheus.HistogramVec

	// Rows counts rows moved, by direction (written/read).
	Rows *prometheus.CounterVec

	// Bytes counts encoded column bytes moved, by direction.
	Bytes *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of table operations",
			},
			[]string{"operation", "status"},
		),
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Table operation latency in seconds",
				Buckets: []float64{
					1e-5, // in-memory metadata
					1e-4,
					1e-3, // local chunk I/O
					1e-2,
					1e-1, // object store round trips
					1,
					10, // large appends
				},
			},
			[]string{"operation"},
		),
		Rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows written to or read from tables",
			},
			[]string{"direction"},
		),
		Bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "column_bytes_total",
				Help:      "Encoded column bytes written to or read from tables",
			},
			[]string{"direction"},
		),
	}
}

// Observe records one operation that started at start.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Written records rows and bytes written.
func (m *Metrics) Written(rows, bytes int) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues("written").Add(float64(rows))
	m.Bytes.WithLabelValues("written").Add(float64(bytes))
}

// Read records rows and bytes read.
func (m *Metrics) Read(rows, bytes int) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues("read").Add(float64(rows))
	m.Bytes.WithLabelValues("read").Add(float64(bytes))
}
