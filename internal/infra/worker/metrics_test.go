package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetricsWith(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWorkerMetricsWith(reg)

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}

	metrics.RecordCycleRun("success")
	metrics.RecordCycleDuration(0.2)
	metrics.RecordDonationsAnnounced(1)
	metrics.RecordLastSuccess()
	metrics.RecordLoadTimestamp()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"worker_poll_cycle_runs_total",
		"worker_poll_cycle_duration_seconds",
		"worker_poll_donations_announced_total",
		"worker_poll_cycle_last_success_timestamp",
		"worker_config_load_timestamp",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewWorkerMetricsWith_DuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWorkerMetricsWith(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewWorkerMetricsWith(reg)
}

func TestWorkerMetrics_RecordCycleRun(t *testing.T) {
	metrics := NewWorkerMetricsWith(prometheus.NewRegistry())

	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("failure")
	metrics.RecordCycleRun("skipped")

	tests := []struct {
		status string
		want   float64
	}{
		{"success", 2},
		{"failure", 1},
		{"skipped", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues(tt.status)); got != tt.want {
			t.Errorf("runs{status=%q} = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestWorkerMetrics_RecordCycleDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWorkerMetricsWith(reg)

	metrics.RecordCycleDuration(1)
	metrics.RecordCycleDuration(2)

	if got := testutil.CollectAndCount(metrics.CycleDurationSeconds); got != 1 {
		t.Errorf("CollectAndCount = %d, want 1 histogram", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "worker_poll_cycle_duration_seconds" {
			continue
		}
		h := f.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 2 {
			t.Errorf("sample count = %d, want 2", h.GetSampleCount())
		}
		if h.GetSampleSum() != 3 {
			t.Errorf("sample sum = %v, want 3", h.GetSampleSum())
		}
	}
}

func TestWorkerMetrics_RecordDonationsAnnounced(t *testing.T) {
	metrics := NewWorkerMetricsWith(prometheus.NewRegistry())

	metrics.RecordDonationsAnnounced(3)
	metrics.RecordDonationsAnnounced(0)
	metrics.RecordDonationsAnnounced(2)

	if got := testutil.ToFloat64(metrics.DonationsAnnouncedTotal); got != 5 {
		t.Errorf("DonationsAnnouncedTotal = %v, want 5", got)
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	metrics := NewWorkerMetricsWith(prometheus.NewRegistry())

	if got := testutil.ToFloat64(metrics.CycleLastSuccessTimestamp); got != 0 {
		t.Errorf("initial timestamp = %v, want 0", got)
	}
	metrics.RecordLastSuccess()
	if got := testutil.ToFloat64(metrics.CycleLastSuccessTimestamp); got <= 0 {
		t.Errorf("timestamp after RecordLastSuccess = %v, want > 0", got)
	}
}
