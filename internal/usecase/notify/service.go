package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"donation-relay/internal/infra/notifier"
	"donation-relay/internal/observability/logging"
	"donation-relay/internal/observability/tracing"
	"donation-relay/internal/resilience/circuitbreaker"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// defaultSendTimeout bounds a single channel send, retries included.
const defaultSendTimeout = 30 * time.Second

// Service delivers announcements to every enabled channel.
type Service interface {
	// Deliver sends text to each enabled channel in configured order and
	// returns once every channel has been attempted.
	//
	// Returns:
	//   - nil: every enabled channel accepted the message
	//   - ErrEmptyMessage / ErrNoChannels
	//   - a join of *ChannelError, one per failed channel
	Deliver(ctx context.Context, text string) error

	// DeliverRemaining resumes a partly delivered announcement. Channels
	// named in delivered are skipped, and every channel that accepts text is
	// added to delivered. Errors are those of Deliver; nil means every enabled
	// channel is now in delivered.
	DeliverRemaining(ctx context.Context, text string, delivered map[string]bool) error

	// GetChannelHealth returns the breaker state of every channel.
	GetChannelHealth() []ChannelHealthStatus
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	CircuitBreakerOpen  bool   `json:"circuit_breaker_open"`
	State               string `json:"state"` // closed|half-open|open
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// service is the concrete implementation of Service interface.
type service struct {
	channels    []Channel
	breakers    map[string]*circuitbreaker.CircuitBreaker
	sendTimeout time.Duration
	tracer      trace.Tracer
}

// Option customises the service.
type Option func(*service)

// WithSendTimeout bounds each channel send.
func WithSendTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithTracer overrides the tracer used for delivery spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) { s.tracer = tracer }
}

// WithBreakerConfig replaces the per-channel breaker settings.
func WithBreakerConfig(config func(name string) circuitbreaker.Config) Option {
	return func(s *service) {
		for _, ch := range s.channels {
			s.breakers[ch.Name()] = newChannelBreaker(config(ch.Name()))
		}
	}
}

// NewService creates a delivery service over channels. Each channel gets a
// breaker built from circuitbreaker.ChatDeliveryConfig.
func NewService(channels []Channel, opts ...Option) Service {
	svc := &service{
		channels:    channels,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker, len(channels)),
		sendTimeout: defaultSendTimeout,
		tracer:      tracing.GetTracer(),
	}

	for _, ch := range channels {
		svc.breakers[ch.Name()] = newChannelBreaker(circuitbreaker.ChatDeliveryConfig(ch.Name()))
	}
	for _, opt := range opts {
		opt(svc)
	}

	enabled := 0
	for _, ch := range channels {
		if ch.IsEnabled() {
			enabled++
		}
	}
	SetChannelsEnabled(float64(enabled))

	return svc
}

// newChannelBreaker does not count a canceled caller against the channel.
func newChannelBreaker(cfg circuitbreaker.Config) *circuitbreaker.CircuitBreaker {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return circuitbreaker.New(cfg)
}

// Deliver implements Service.Deliver.
func (s *service) Deliver(ctx context.Context, text string) error {
	return s.DeliverRemaining(ctx, text, make(map[string]bool, len(s.channels)))
}

// DeliverRemaining implements Service.DeliverRemaining.
func (s *service) DeliverRemaining(ctx context.Context, text string, delivered map[string]bool) (err error) {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	logger := logging.FromContext(ctx).With(slog.String("request_id", requestID))

	ctx, span := s.tracer.Start(ctx, "notify.deliver")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, logging.SanitizeError(err))
		}
		span.End()
	}()

	var (
		enabled   int
		attempted int
		errs      []error
	)
	for _, ch := range s.channels {
		if !ch.IsEnabled() {
			continue
		}
		enabled++
		if delivered[ch.Name()] {
			continue
		}
		attempted++

		if sendErr := s.deliverTo(ctx, logger, ch, text); sendErr != nil {
			errs = append(errs, &ChannelError{Channel: ch.Name(), Err: sendErr})
			continue
		}
		delivered[ch.Name()] = true
	}

	span.SetAttributes(
		attribute.Int("notify.channels", attempted),
		attribute.Int("notify.already_delivered", enabled-attempted),
		attribute.Int("notify.failed", len(errs)))

	if enabled == 0 {
		return ErrNoChannels
	}
	return errors.Join(errs...)
}

// deliverTo sends to one channel through its breaker.
func (s *service) deliverTo(ctx context.Context, logger *slog.Logger, ch Channel, text string) error {
	name := ch.Name()
	breaker := s.breakers[name]
	logger = logger.With(slog.String("channel", name))

	RecordDispatch(name)

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	wasOpen := breaker.IsOpen()
	start := time.Now()
	err := breaker.Run(func() error {
		return safeSend(sendCtx, ch, text)
	})
	duration := time.Since(start)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logger.Warn("Channel skipped: circuit breaker open")
		RecordDropped(name, "circuit_open")
		return ErrCircuitBreakerOpen
	}

	if !wasOpen && breaker.IsOpen() {
		logger.Error("Circuit breaker opened for channel",
			slog.Uint64("consecutive_failures", uint64(breaker.Counts().ConsecutiveFailures)))
		RecordCircuitBreakerOpen(name)
	}

	if err != nil {
		var rateErr *notifier.RateLimitError
		if errors.As(err, &rateErr) {
			RecordRateLimitHit(name)
		}
		RecordFailure(name, duration)
		logger.Warn("Channel notification failed",
			slog.Duration("send_duration", duration),
			slog.String("error", logging.SanitizeError(err)))
		return err
	}

	RecordSuccess(name, duration)
	logger.Info("Channel notification sent successfully",
		slog.Duration("send_duration", duration))
	return nil
}

// safeSend turns a panicking channel into an error.
func safeSend(ctx context.Context, ch Channel, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in notification channel",
				slog.String("channel", ch.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, text)
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(s.channels))

	for _, ch := range s.channels {
		breaker := s.breakers[ch.Name()]
		state := breaker.State()

		statuses = append(statuses, ChannelHealthStatus{
			Name:                ch.Name(),
			Enabled:             ch.IsEnabled(),
			CircuitBreakerOpen:  state == gobreaker.StateOpen,
			State:               state.String(),
			ConsecutiveFailures: breaker.Counts().ConsecutiveFailures,
		})
	}

	return statuses
}
