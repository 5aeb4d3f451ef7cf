// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tabd/internal/logger"
)

// Dispatch outcome labels.
const (
	StatusLaunched = "launched"
	StatusFailed   = "failed"
	StatusDropped  = "dropped"
)

type Metrics struct {
	registry prometheus.Registerer

	dispatchesTotal *prometheus.CounterVec
	launchDuration  prometheus.Histogram
	parseErrors     prometheus.Counter
	tableReloads    prometheus.Counter
	jobsLoaded      prometheus.Gauge
}

func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Job dispatches by outcome",
			},
			[]string{"status"},
		),
		launchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "launch_duration_seconds",
				Help:      "Time spent handing a job to the executor",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5},
			},
		),
		parseErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_parse_errors_total",
				Help:      "Malformed table lines skipped during load",
			},
		),
		tableReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_reloads_total",
				Help:      "Successful job table reloads",
			},
		),
		jobsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_loaded",
				Help:      "Job definitions in the active table",
			},
		),
	}

	reg.MustRegister(
		m.dispatchesTotal,
		m.launchDuration,
		m.parseErrors,
		m.tableReloads,
		m.jobsLoaded,
	)

	return m
}

func (m *Metrics) RecordDispatch(status string, duration time.Duration) {
	m.dispatchesTotal.WithLabelValues(status).Inc()
	if status != StatusDropped {
		m.launchDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) AddParseErrors(n int) {
	m.parseErrors.Add(float64(n))
}

func (m *Metrics) RecordReload(jobCount int) {
	m.tableReloads.Inc()
	m.jobsLoaded.Set(float64(jobCount))
}

// Serve exposes /metrics on addr until the server fails. Intended to run in
// its own goroutine.
func Serve(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("metrics listener started", logger.Field{Key: "addr", Value: addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics listener stopped", err)
	}
}
