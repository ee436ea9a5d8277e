package config

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	pkgconfig "donation-relay/internal/pkg/config"
)

func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DONATION_CURRENCY", "MINIMUM_DONATION", "TILTIFY_BASE_URL", "TILTIFY_TIMEOUT",
		"DATABASE_URL", "RESUME_FROM_CHECKPOINT", "DELIVERY_MAX_ATTEMPTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRelayConfig_Defaults(t *testing.T) {
	clearRelayEnv(t)

	cfg := LoadRelayConfig(nil, nil)

	assert.Equal(t, "$", cfg.CurrencySymbol)
	assert.True(t, cfg.MinimumDonation.IsZero())
	assert.Equal(t, DefaultTiltifyBaseURL, cfg.TiltifyBaseURL)
	assert.Equal(t, 10*time.Second, cfg.TiltifyTimeout)
	assert.False(t, cfg.CheckpointEnabled())
	assert.False(t, cfg.ResumeFromCheckpoint)
	assert.Zero(t, cfg.DeliveryMaxAttempts)
}

func TestLoadRelayConfig_FromEnv(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("DONATION_CURRENCY", "€")
	t.Setenv("MINIMUM_DONATION", "5.00")
	t.Setenv("TILTIFY_BASE_URL", "http://localhost:8080")
	t.Setenv("TILTIFY_TIMEOUT", "3s")
	t.Setenv("DATABASE_URL", "postgres://relay@localhost/relay")
	t.Setenv("RESUME_FROM_CHECKPOINT", "true")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "60")

	cfg := LoadRelayConfig(nil, nil)

	assert.Equal(t, "€", cfg.CurrencySymbol)
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.MinimumDonation))
	assert.Equal(t, "http://localhost:8080", cfg.TiltifyBaseURL)
	assert.Equal(t, 3*time.Second, cfg.TiltifyTimeout)
	assert.True(t, cfg.CheckpointEnabled())
	assert.True(t, cfg.ResumeFromCheckpoint)
	assert.Equal(t, 60, cfg.DeliveryMaxAttempts)
}

func TestLoadRelayConfig_InvalidValuesFallBack(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("MINIMUM_DONATION", "-1")
	t.Setenv("TILTIFY_BASE_URL", "ftp://tiltify")
	t.Setenv("TILTIFY_TIMEOUT", "10m")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "-3")

	metrics := pkgconfig.NewConfigMetricsWith(prometheus.NewRegistry(), "relay_test")
	cfg := LoadRelayConfig(nil, metrics)

	assert.True(t, cfg.MinimumDonation.IsZero())
	assert.Equal(t, DefaultTiltifyBaseURL, cfg.TiltifyBaseURL)
	assert.Equal(t, 10*time.Second, cfg.TiltifyTimeout)
	assert.Zero(t, cfg.DeliveryMaxAttempts)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("minimum_donation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("tiltify_base_url")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("tiltify_timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("delivery_max_attempts")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))
}
