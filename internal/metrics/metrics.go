// Package metrics provides Prometheus metrics for load runs.
//
// Metrics live in their own registry so that a run can export them to a
// node_exporter textfile without the Go runtime collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pgcopy"

// Run outcomes recorded in runs_total.
const (
	OutcomeLoaded  = "loaded"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds all Prometheus metrics for pgcopy.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal    *prometheus.CounterVec
	RowsInserted *prometheus.CounterVec
	Batches      *prometheus.CounterVec
	BatchRows    *prometheus.HistogramVec
	RunDuration  *prometheus.HistogramVec
	LastSuccess  *prometheus.GaugeVec
}

// New creates metrics registered in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of load runs by outcome",
			},
			[]string{"table", "outcome"},
		),
		RowsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_inserted_total",
				Help:      "Total number of rows inserted, counted per batch before commit",
			},
			[]string{"table"},
		),
		Batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of insert statements issued",
			},
			[]string{"table"},
		),
		BatchRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_rows",
				Help:      "Rows per insert statement",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~262k
			},
			[]string{"table"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of a load run from resolution to completion marker",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27m
			},
			[]string{"table"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that loaded or skipped",
			},
			[]string{"table"},
		),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler or tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BatchInserted records one batch.
func (m *Metrics) BatchInserted(table string, rows int) {
	m.Batches.WithLabelValues(table).Inc()
	m.RowsInserted.WithLabelValues(table).Add(float64(rows))
	m.BatchRows.WithLabelValues(table).Observe(float64(rows))
}

// RunFinished records the outcome of one run.
func (m *Metrics) RunFinished(table, outcome string, d time.Duration) {
	m.RunsTotal.WithLabelValues(table, outcome).Inc()
	m.RunDuration.WithLabelValues(table).Observe(d.Seconds())
	if outcome != OutcomeFailed {
		m.LastSuccess.WithLabelValues(table).SetToCurrentTime()
	}
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// atomically replacing any previous file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
