package notify

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	for _, channel := range []string{"discord", "slack", "twitch:#alpha"} {
		t.Run(channel, func(t *testing.T) {
			initial := testutil.ToFloat64(deliveryAttemptsTotal.WithLabelValues(channel))

			RecordDispatch(channel)

			after := testutil.ToFloat64(deliveryAttemptsTotal.WithLabelValues(channel))
			if after != initial+1 {
				t.Errorf("RecordDispatch() counter = %v, want %v", after, initial+1)
			}
		})
	}
}

func TestRecordSendResult(t *testing.T) {
	tests := []struct {
		name   string
		record func(channel string, d time.Duration)
		status string
	}{
		{name: "success", record: RecordSuccess, status: "delivered"},
		{name: "failure", record: RecordFailure, status: "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const channel = "metrics-test"
			initial := testutil.ToFloat64(deliveryResultsTotal.WithLabelValues(channel, tt.status))

			tt.record(channel, 250*time.Millisecond)

			after := testutil.ToFloat64(deliveryResultsTotal.WithLabelValues(channel, tt.status))
			if after != initial+1 {
				t.Errorf("results_total{result=%q} = %v, want %v", tt.status, after, initial+1)
			}
		})
	}
}

func TestRecordRateLimitHit(t *testing.T) {
	initial := testutil.ToFloat64(destinationThrottledTotal.WithLabelValues("slack"))

	RecordRateLimitHit("slack")

	if after := testutil.ToFloat64(destinationThrottledTotal.WithLabelValues("slack")); after != initial+1 {
		t.Errorf("rate limit hits = %v, want %v", after, initial+1)
	}
}

func TestSetChannelsEnabled(t *testing.T) {
	SetChannelsEnabled(3)

	if got := testutil.ToFloat64(destinationsEnabled); got != 3 {
		t.Errorf("channels enabled = %v, want 3", got)
	}

	NewService([]Channel{
		&mockChannel{name: "a", enabled: true},
		&mockChannel{name: "b", enabled: false},
	})

	if got := testutil.ToFloat64(destinationsEnabled); got != 1 {
		t.Errorf("channels enabled after NewService = %v, want 1", got)
	}
}
