package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus instruments on a private registry so
// multiple servers can coexist in one process.
type metrics struct {
	registry      *prometheus.Registry
	runsStarted   *prometheus.CounterVec
	runsFailed    prometheus.Counter
	photonsTraced prometheus.Counter
	runDuration   prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nirmc_runs_started_total",
				Help: "Simulation runs started, by tissue model",
			},
			[]string{"model"},
		),
		runsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nirmc_runs_failed_total",
				Help: "Simulation runs that ended in an error",
			},
		),
		photonsTraced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nirmc_photons_traced_total",
				Help: "Photon histories completed across all runs",
			},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nirmc_run_duration_seconds",
				Help:    "Wall-clock duration of completed simulation runs",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
	}
	m.registry.MustRegister(m.runsStarted, m.runsFailed, m.photonsTraced, m.runDuration)
	return m
}
