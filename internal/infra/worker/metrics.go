package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"donation-relay/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the poll scheduler.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// metrics for poll cycle execution.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total{field}
//   - worker_config_fallbacks_total{field}
//   - worker_config_fallback_active
//
// Cycle metrics:
//   - worker_poll_cycle_runs_total{status}: success, failure or skipped
//   - worker_poll_cycle_duration_seconds
//   - worker_poll_donations_announced_total
//   - worker_poll_cycle_last_success_timestamp
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	start := time.Now()
//	stats, err := poller.RunCycle(ctx)
//	metrics.RecordCycleDuration(time.Since(start).Seconds())
//	if err != nil {
//	    metrics.RecordCycleRun("failure")
//	    return
//	}
//	metrics.RecordCycleRun("success")
//	metrics.RecordDonationsAnnounced(stats.Announced)
//	metrics.RecordLastSuccess()
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CycleRunsTotal counts poll cycles by status.
	CycleRunsTotal *prometheus.CounterVec

	// CycleDurationSeconds measures poll cycle wall time.
	// Buckets cover a fast empty poll up to a cycle stuck on retries.
	CycleDurationSeconds prometheus.Histogram

	// DonationsAnnouncedTotal counts donations delivered by the scheduler.
	DonationsAnnouncedTotal prometheus.Counter

	// CycleLastSuccessTimestamp is the Unix time of the last successful cycle.
	CycleLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates the metrics on the default Prometheus registry.
// It must be called once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWith creates the metrics on reg.
func NewWorkerMetricsWith(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith(reg, "worker"),

		CycleRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_poll_cycle_runs_total",
			Help: "Total number of poll cycles by status (success/failure/skipped)",
		}, []string{"status"}),

		CycleDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_poll_cycle_duration_seconds",
			Help:    "Duration of poll cycles in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		DonationsAnnouncedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_poll_donations_announced_total",
			Help: "Total number of donations announced by poll cycles",
		}),

		CycleLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_poll_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful poll cycle",
		}),
	}
}

// RecordCycleRun increments the cycle counter for status.
func (m *WorkerMetrics) RecordCycleRun(status string) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
}

// RecordCycleDuration observes one cycle's duration in seconds.
func (m *WorkerMetrics) RecordCycleDuration(seconds float64) {
	m.CycleDurationSeconds.Observe(seconds)
}

// RecordDonationsAnnounced adds count announced donations.
func (m *WorkerMetrics) RecordDonationsAnnounced(count int) {
	if count > 0 {
		m.DonationsAnnouncedTotal.Add(float64(count))
	}
}

// RecordLastSuccess records the current time as the last successful cycle.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CycleLastSuccessTimestamp.SetToCurrentTime()
}
