package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery metrics, labelled by destination name ("twitch:#room", "discord",
// "slack").
var (
	deliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_attempts_total",
			Help: "Announcements handed to a destination, including ones its breaker rejected",
		},
		[]string{"destination"},
	)

	deliveryResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_results_total",
			Help: "Announcement sends by destination and result",
		},
		[]string{"destination", "result"}, // result: delivered|failed
	)

	deliverySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "relay_delivery_duration_seconds",
			Help: "Time spent sending one announcement to one destination, retries included",
			// chat writes return in milliseconds; webhook retries can take tens of seconds
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 15, 30},
		},
		[]string{"destination"},
	)

	destinationThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_destination_throttled_total",
			Help: "Sends that ended with the destination answering 429",
		},
		[]string{"destination"},
	)

	breakerTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_destination_breaker_trips_total",
			Help: "Times a destination's circuit breaker opened",
		},
		[]string{"destination"},
	)

	deliverySkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_skipped_total",
			Help: "Announcements not sent to a destination",
		},
		[]string{"destination", "reason"}, // reason: circuit_open
	)

	destinationsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_destinations_enabled",
			Help: "Number of destinations receiving announcements",
		},
	)
)

// RecordDispatch counts an announcement handed to destination.
func RecordDispatch(destination string) {
	deliveryAttemptsTotal.WithLabelValues(destination).Inc()
}

// RecordSuccess counts a delivered announcement and its send time.
func RecordSuccess(destination string, duration time.Duration) {
	deliveryResultsTotal.WithLabelValues(destination, "delivered").Inc()
	deliverySeconds.WithLabelValues(destination).Observe(duration.Seconds())
}

// RecordFailure counts a failed send and how long it took to fail.
func RecordFailure(destination string, duration time.Duration) {
	deliveryResultsTotal.WithLabelValues(destination, "failed").Inc()
	deliverySeconds.WithLabelValues(destination).Observe(duration.Seconds())
}

// RecordDropped counts an announcement that never reached the transport.
func RecordDropped(destination, reason string) {
	deliverySkippedTotal.WithLabelValues(destination, reason).Inc()
}

// RecordCircuitBreakerOpen counts destination's breaker opening.
func RecordCircuitBreakerOpen(destination string) {
	breakerTripsTotal.WithLabelValues(destination).Inc()
}

// RecordRateLimitHit counts a send the destination throttled.
func RecordRateLimitHit(destination string) {
	destinationThrottledTotal.WithLabelValues(destination).Inc()
}

// SetChannelsEnabled publishes the number of enabled destinations.
func SetChannelsEnabled(count float64) {
	destinationsEnabled.Set(count)
}
