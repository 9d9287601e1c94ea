// Package metrics implements the PipelineMetrics port with Prometheus
// collectors on a private registry.
//
// Metrics:
//   - docpipe_stage_total{stage,outcome} - count of stage executions
//   - docpipe_stage_duration_seconds{stage} - histogram of stage durations
//   - docpipe_chunks_total{chunker} - chunks produced per chunker
//   - docpipe_chunks_per_run{chunker} - histogram of chunks per run
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.PipelineMetrics = (*Metrics)(nil)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	chunksTotal   *prometheus.CounterVec
	chunksPerRun  *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry. Each call is independent,
// so tests can create as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_stage_total",
				Help: "Total number of pipeline stage executions",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docpipe_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
			},
			[]string{"stage"},
		),
		chunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docpipe_chunks_total",
				Help: "Total number of chunks produced",
			},
			[]string{"chunker"},
		),
		chunksPerRun: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docpipe_chunks_per_run",
				Help:    "Number of chunks produced by one chunking run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
			},
			[]string{"chunker"},
		),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveChunks records the chunk count of a chunking run.
func (m *Metrics) ObserveChunks(chunker string, n int) {
	m.chunksTotal.WithLabelValues(chunker).Add(float64(n))
	m.chunksPerRun.WithLabelValues(chunker).Observe(float64(n))
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
