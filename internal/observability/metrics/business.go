package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordDonationAnnounced records a donation that reached every destination.
func RecordDonationAnnounced(amount decimal.Decimal, currency string) {
	DonationsAnnouncedTotal.Inc()
	DonationAmountAnnouncedTotal.WithLabelValues(currency).Add(amount.InexactFloat64())
	LastAnnouncedTimestamp.SetToCurrentTime()
}

// RecordDonationsBelowMinimum records new donations dropped by the amount filter.
func RecordDonationsBelowMinimum(count int) {
	if count <= 0 {
		return
	}
	DonationsBelowMinimumTotal.Add(float64(count))
}

// RecordTiltifyRequest records the duration of a Tiltify API call.
// Operation should name the endpoint (e.g., "token", "campaign_lookup", "donations").
func RecordTiltifyRequest(operation string, success bool, start time.Time) {
	status := "success"
	if !success {
		status = "failure"
	}
	observeSince(TiltifyRequestDuration.WithLabelValues(operation, status), start)
}

// RecordTokenRefresh records the result of an access token refresh.
func RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	TiltifyTokenRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "load_watermark", "save_watermark").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
