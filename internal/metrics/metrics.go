// Package metrics exposes Prometheus instruments for fit jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mnfit"

// Metrics holds the fit job instruments.
type Metrics struct {
	FitsStarted   *prometheus.CounterVec
	FitsFinished  *prometheus.CounterVec
	ActiveFits    prometheus.Gauge
	FitDuration   *prometheus.HistogramVec
	FunctionCalls *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FitsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_started_total",
			Help:      "Fit jobs accepted, by minimizer.",
		}, []string{"minimizer"}),
		FitsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fits_finished_total",
			Help:      "Fit jobs finished, by final status and exit condition.",
		}, []string{"status", "exit_condition"}),
		ActiveFits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fits_active",
			Help:      "Fit jobs currently minimizing.",
		}),
		FitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_duration_seconds",
			Help:      "Wall time of fit jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"minimizer"}),
		FunctionCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fit_function_calls",
			Help:      "Cost function evaluations per fit job.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 14),
		}, []string{"minimizer"}),
	}
	if reg != nil {
		reg.MustRegister(m.FitsStarted, m.FitsFinished, m.ActiveFits, m.FitDuration, m.FunctionCalls)
	}
	return m
}

// Started records an accepted job.
func (m *Metrics) Started(minimizer string) {
	m.FitsStarted.WithLabelValues(minimizer).Inc()
}

// Running tracks a job while it minimizes. The returned function ends the
// tracking.
func (m *Metrics) Running() func() {
	m.ActiveFits.Inc()
	return m.ActiveFits.Dec
}

// Finished records the outcome of a job. exitCondition is empty for jobs
// that ended without a result.
func (m *Metrics) Finished(minimizer, status, exitCondition string, calls int, took time.Duration) {
	if exitCondition == "" {
		exitCondition = "none"
	}
	m.FitsFinished.WithLabelValues(status, exitCondition).Inc()
	m.FitDuration.WithLabelValues(minimizer).Observe(took.Seconds())
	if calls > 0 {
		m.FunctionCalls.WithLabelValues(minimizer).Observe(float64(calls))
	}
}
