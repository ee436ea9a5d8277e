package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"donation-relay/internal/pkg/config"
)

// WorkerConfig holds the scheduling and serving settings of the relay
// process.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// Invalid environment values never stop the process: each one falls back to
// its default with a warning and a config metric.
type WorkerConfig struct {
	// PollInterval is the time between the starts of two poll cycles.
	// Range: 1s-1h
	// Default: 5s
	PollInterval time.Duration

	// PageSize is how many recent donations each cycle fetches.
	// Range: 1-100 (the API maximum)
	// Default: 100
	PageSize int

	// CycleTimeout bounds one poll cycle, deliveries included.
	// Range: 1s-10m
	// Default: 30s
	CycleTimeout time.Duration

	// ShutdownTimeout is how long shutdown waits for a running cycle.
	// Range: 1s-5m
	// Default: 30s
	ShutdownTimeout time.Duration

	// HealthPort serves the liveness and readiness probes.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int

	// MetricsPort serves /metrics and /health/channels.
	// Range: 1024-65535
	// Default: 9090
	MetricsPort int
}

// DefaultConfig returns a WorkerConfig with the default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:    5 * time.Second,
		PageSize:        100,
		CycleTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		HealthPort:      9091,
		MetricsPort:     9090,
	}
}

// Schedule returns the cron schedule string for the poll interval.
func (c *WorkerConfig) Schedule() string {
	return "@every " + c.PollInterval.String()
}

// Validate checks every field and reports all problems together.
//
// Example:
//
//	cfg := DefaultConfig()
//	cfg.PageSize = 0
//	err := cfg.Validate()
//	// err: "page size: value 0 is below minimum 1"
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := validatePollInterval(c.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("poll interval: %w", err))
	}
	if err := validatePageSize(c.PageSize); err != nil {
		errs = append(errs, fmt.Errorf("page size: %w", err))
	}
	if err := validateCycleTimeout(c.CycleTimeout); err != nil {
		errs = append(errs, fmt.Errorf("cycle timeout: %w", err))
	}
	if err := validateShutdownTimeout(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("shutdown timeout: %w", err))
	}
	if err := validatePort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := validatePort(c.MetricsPort); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}
	if c.HealthPort == c.MetricsPort {
		errs = append(errs, fmt.Errorf("health port and metrics port must differ, both are %d", c.HealthPort))
	}

	return errors.Join(errs...)
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// Environment variables:
//   - POLL_INTERVAL: Duration string, e.g. "5s"
//   - POLL_PAGE_SIZE: Integer 1-100
//   - CYCLE_TIMEOUT: Duration string
//   - SHUTDOWN_TIMEOUT: Duration string
//   - WORKER_HEALTH_PORT: Integer 1024-65535
//   - METRICS_PORT: Integer 1024-65535
//
// The result is always valid. If the two ports collide after loading, the
// metrics port falls back to its default.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()

	var configMetrics *config.ConfigMetrics
	if metrics != nil {
		configMetrics = metrics.ConfigMetrics
	}
	report := config.NewReport(logger, configMetrics)

	cfg.PollInterval = config.Apply(report, "poll_interval",
		config.LoadEnvDuration("POLL_INTERVAL", cfg.PollInterval, validatePollInterval))
	cfg.PageSize = config.Apply(report, "poll_page_size",
		config.LoadEnvInt("POLL_PAGE_SIZE", cfg.PageSize, validatePageSize))
	cfg.CycleTimeout = config.Apply(report, "cycle_timeout",
		config.LoadEnvDuration("CYCLE_TIMEOUT", cfg.CycleTimeout, validateCycleTimeout))
	cfg.ShutdownTimeout = config.Apply(report, "shutdown_timeout",
		config.LoadEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, validateShutdownTimeout))
	cfg.HealthPort = config.Apply(report, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, validatePort))
	cfg.MetricsPort = config.Apply(report, "metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, validatePort))

	if cfg.HealthPort == cfg.MetricsPort {
		fallback := DefaultConfig().MetricsPort
		if cfg.HealthPort == fallback {
			fallback = DefaultConfig().HealthPort
		}
		cfg.MetricsPort = config.Apply(report, "metrics_port", config.LoadResult[int]{
			Value:           fallback,
			FallbackApplied: true,
			Warnings:        []string{fmt.Sprintf("METRICS_PORT collides with WORKER_HEALTH_PORT %d, using %d", cfg.HealthPort, fallback)},
		})
	}

	report.Finish()
	return &cfg
}

func validatePollInterval(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, time.Hour)
}

func validatePageSize(n int) error {
	return config.ValidateIntRange(n, 1, 100)
}

func validateCycleTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 10*time.Minute)
}

func validateShutdownTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 5*time.Minute)
}

func validatePort(port int) error {
	return config.ValidateIntRange(port, 1024, 65535)
}
