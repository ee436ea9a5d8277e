package config

import "log/slog"

// Report is shared bookkeeping for a batch of fail-open loads. It logs every
// fallback warning, feeds the component's ConfigMetrics and remembers whether
// any fallback happened so the caller can set the FallbackActive gauge once.
type Report struct {
	logger   *slog.Logger
	metrics  *ConfigMetrics
	Fallback bool
}

// NewReport returns a Report. metrics may be nil.
func NewReport(logger *slog.Logger, metrics *ConfigMetrics) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{logger: logger, metrics: metrics}
}

// Apply unwraps a LoadResult, logging and counting a fallback when one was
// applied.
func Apply[T any](r *Report, field string, result LoadResult[T]) T {
	if result.FallbackApplied {
		r.Fallback = true
		if r.metrics != nil {
			r.metrics.RecordValidationError(field)
			r.metrics.RecordFallback(field)
		}
		for _, warning := range result.Warnings {
			r.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}

// Finish publishes the aggregate fallback state and load timestamp.
func (r *Report) Finish() {
	if r.metrics == nil {
		return
	}
	r.metrics.SetFallbackActive(r.Fallback)
	r.metrics.RecordLoadTimestamp()
}
