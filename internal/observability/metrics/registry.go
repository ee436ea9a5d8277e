// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics track donation relay activity
var (
	// DonationsAnnouncedTotal counts donations delivered to every destination
	DonationsAnnouncedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_announced_total",
			Help: "Total number of donations announced to all destinations",
		},
	)

	// DonationAmountAnnouncedTotal sums the announced donation amounts per currency
	DonationAmountAnnouncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_amount_announced_total",
			Help: "Sum of announced donation amounts",
		},
		[]string{"currency"},
	)

	// DonationsBelowMinimumTotal counts new donations skipped by the minimum amount filter
	DonationsBelowMinimumTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "donations_below_minimum_total",
			Help: "Total number of new donations skipped because they were below the minimum amount",
		},
	)

	// LastAnnouncedTimestamp records when the most recent announcement was made
	LastAnnouncedTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "donation_last_announced_timestamp_seconds",
			Help: "Unix timestamp of the most recent successful announcement",
		},
	)
)

// Tiltify API metrics
var (
	// TiltifyRequestDuration measures Tiltify API call duration in seconds
	TiltifyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiltify_request_duration_seconds",
			Help:    "Tiltify API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	// TiltifyTokenRefreshesTotal counts token refresh attempts by result
	TiltifyTokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiltify_token_refreshes_total",
			Help: "Total number of Tiltify access token refreshes",
		},
		[]string{"result"}, // result: success, failure
	)
)

// Database metrics track checkpoint persistence
var (
	// DBQueryDuration measures database query duration in seconds
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)
)

// observeSince records elapsed seconds on a histogram.
func observeSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
