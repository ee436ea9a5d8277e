package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	pkgconfig "donation-relay/internal/pkg/config"
)

// DefaultTiltifyBaseURL is the Tiltify v5 API root.
const DefaultTiltifyBaseURL = "https://v5api.tiltify.com"

// RelayConfig holds the donation-handling settings.
type RelayConfig struct {
	// CurrencySymbol is prefixed to every announced amount.
	// Default: "$"
	CurrencySymbol string

	// MinimumDonation is the smallest amount that is announced.
	// Default: 0 (announce everything)
	MinimumDonation decimal.Decimal

	// TiltifyBaseURL is the API root. Overridable for staging and tests.
	TiltifyBaseURL string

	// TiltifyTimeout bounds every Tiltify HTTP call.
	// Default: 10 seconds
	TiltifyTimeout time.Duration

	// DatabaseURL enables the watermark checkpoint when set.
	DatabaseURL string

	// ResumeFromCheckpoint seeds the watermark from the checkpoint instead of
	// the newest donation.
	ResumeFromCheckpoint bool

	// DeliveryMaxAttempts is how many poll cycles a donation may spend
	// waiting on a failing destination before it is given up.
	// Default: 0 (wait until every destination accepts it)
	DeliveryMaxAttempts int
}

// DefaultRelayConfig returns the settings used when no environment is set.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		CurrencySymbol:  "$",
		MinimumDonation: decimal.Zero,
		TiltifyBaseURL:  DefaultTiltifyBaseURL,
		TiltifyTimeout:  10 * time.Second,
	}
}

// LoadRelayConfig loads relay settings from the environment. Invalid values
// fall back to defaults with a logged warning and a metric; the result is
// always usable.
func LoadRelayConfig(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) *RelayConfig {
	cfg := DefaultRelayConfig()
	report := pkgconfig.NewReport(logger, metrics)

	cfg.CurrencySymbol = pkgconfig.LoadEnvString("DONATION_CURRENCY", cfg.CurrencySymbol)
	cfg.MinimumDonation = pkgconfig.Apply(report, "minimum_donation",
		pkgconfig.LoadEnvDecimal("MINIMUM_DONATION", cfg.MinimumDonation, pkgconfig.ValidateNonNegativeDecimal))
	cfg.TiltifyBaseURL = pkgconfig.Apply(report, "tiltify_base_url",
		pkgconfig.LoadEnvWithFallback("TILTIFY_BASE_URL", cfg.TiltifyBaseURL, validateBaseURL))
	cfg.TiltifyTimeout = pkgconfig.Apply(report, "tiltify_timeout",
		pkgconfig.LoadEnvDuration("TILTIFY_TIMEOUT", cfg.TiltifyTimeout, func(d time.Duration) error {
			return pkgconfig.ValidateDuration(d, time.Second, 2*time.Minute)
		}))
	cfg.DatabaseURL = pkgconfig.LoadEnvString("DATABASE_URL", "")
	cfg.ResumeFromCheckpoint = pkgconfig.Apply(report, "resume_from_checkpoint",
		pkgconfig.LoadEnvBool("RESUME_FROM_CHECKPOINT", false))
	cfg.DeliveryMaxAttempts = pkgconfig.Apply(report, "delivery_max_attempts",
		pkgconfig.LoadEnvInt("DELIVERY_MAX_ATTEMPTS", cfg.DeliveryMaxAttempts, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 0, 10000)
		}))

	report.Finish()
	return &cfg
}

// CheckpointEnabled reports whether a database is configured.
func (c *RelayConfig) CheckpointEnabled() bool {
	return c.DatabaseURL != ""
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host")
	}
	return nil
}
