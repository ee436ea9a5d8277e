package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// watermarkNotFoundTotal counts pages scanned to the end without meeting
	// the watermark. Donations may have been missed between polls.
	watermarkNotFoundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_watermark_not_found_total",
			Help: "Total number of polls whose page did not contain the watermark donation",
		},
	)

	// unorderedPagesTotal counts pages rejected by the ordering check
	unorderedPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_unordered_pages_total",
			Help: "Total number of donation pages rejected as not most-recent-first",
		},
	)

	// fetchRetriesTotal counts refresh-and-retry attempts by outcome
	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_fetch_retries_total",
			Help: "Total number of donation fetches retried after a credential refresh",
		},
		[]string{"result"}, // success|failure
	)

	// deliveryFailuresTotal counts cycles stopped by a failed delivery
	deliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_delivery_failures_total",
			Help: "Total number of donations that could not be delivered to every destination",
		},
	)

	// deliveryAbandonedTotal counts donations skipped after the delivery
	// attempt limit, with at least one destination never reached
	deliveryAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_delivery_abandoned_total",
			Help: "Total number of donations given up on after repeated delivery failures",
		},
	)

	// checkpointSaveFailuresTotal counts best-effort checkpoint writes that failed
	checkpointSaveFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_checkpoint_save_failures_total",
			Help: "Total number of watermark checkpoint writes that failed",
		},
	)
)

func recordFetchRetry(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	fetchRetriesTotal.WithLabelValues(result).Inc()
}
