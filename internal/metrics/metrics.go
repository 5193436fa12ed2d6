// Package metrics counts what a generation run produced.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one run in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	records      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	activeWorker prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdatagen_files_written_total",
				Help: "Number of output files completed.",
			},
			[]string{"target", "mode"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdatagen_records_written_total",
				Help: "Number of records written into completed files.",
			},
			[]string{"target", "mode"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdatagen_bytes_written_total",
				Help: "Bytes written to targets after compression.",
			},
			[]string{"target", "mode"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testdatagen_worker_failures_total",
				Help: "Number of workers that stopped on an error.",
			},
			[]string{"target"},
		),
		fileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "testdatagen_file_duration_seconds",
				Help: "Time taken to produce one output file.",

				// 16 buckets: [1ms, 2ms, ..., 32.8s, +Inf]
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"mode"},
		),
		activeWorker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "testdatagen_active_workers",
				Help: "Workers currently producing files.",
			},
		),
	}

	m.registry.MustRegister(m.files, m.records, m.bytes, m.failures, m.fileDuration, m.activeWorker)

	return m
}

// Registry exposes the collectors for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFile records one completed output file.
func (m *Metrics) ObserveFile(target, mode string, records int, bytes int64, d time.Duration) {
	m.files.WithLabelValues(target, mode).Inc()
	m.records.WithLabelValues(target, mode).Add(float64(records))
	m.bytes.WithLabelValues(target, mode).Add(float64(bytes))
	m.fileDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveFailure records a worker that stopped on an error.
func (m *Metrics) ObserveFailure(target string) {
	m.failures.WithLabelValues(target).Inc()
}

func (m *Metrics) WorkerStarted()  { m.activeWorker.Inc() }
func (m *Metrics) WorkerFinished() { m.activeWorker.Dec() }

// WriteTextfile writes the current values in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
