// Package metrics records per-run Prometheus metrics for caudal.
//
// Every run gets its own registry so that repeated runs in one process, and
// parallel tests, never collide on metric registration. The registry can be
// written in the Prometheus text format for the node exporter textfile
// collector.
//
// # Basic Usage
//
//	m := metrics.NewRun()
//	start := clock.Now()
//	err := loader.Load(ctx)
//	m.ObserveLoad(loader.Source(), loader.Caudal.NumRows(), clock.Since(start))
//	_ = m.SampleMemory()
//	err = m.WriteTextfile("outputs/metrics.prom")
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "caudal"

// Run holds the metrics of one pipeline run.
type Run struct {
	registry *prometheus.Registry

	rowsLoaded    *prometheus.CounterVec   // rows read per source
	loadDuration  *prometheus.HistogramVec // load latency per source
	runDuration   prometheus.Gauge         // wall-clock duration of the run
	residentBytes prometheus.Gauge         // process RSS at sampling time
}

// NewRun creates the run metrics on a fresh registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,
		rowsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_loaded_total",
				Help:      "Total number of rows loaded",
			},
			[]string{"source"},
		),
		loadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Time spent loading a dataset",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"source"},
		),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last run",
		}),
		residentBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_resident_bytes",
			Help:      "Resident set size of the process",
		}),
	}
}

// Registry returns the registry holding the run metrics
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveLoad records a completed load
func (r *Run) ObserveLoad(source string, rows int, d time.Duration) {
	r.rowsLoaded.WithLabelValues(source).Add(float64(rows))
	r.loadDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRun records the total run duration
func (r *Run) ObserveRun(d time.Duration) {
	r.runDuration.Set(d.Seconds())
}

// SampleMemory sets the resident memory gauge from the current process.
func (r *Run) SampleMemory() error {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // G115: pids fit in int32
	if err != nil {
		return fmt.Errorf("failed to inspect process: %w", err)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return fmt.Errorf("failed to read memory info: %w", err)
	}
	r.residentBytes.Set(float64(mem.RSS))
	return nil
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// creating the parent directory if needed.
func (r *Run) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
