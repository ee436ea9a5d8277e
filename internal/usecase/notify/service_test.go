package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDeliver_NoChannelsEnabled(t *testing.T) {
	channels := []Channel{
		&mockChannel{name: "discord", enabled: false},
		&mockChannel{name: "slack", enabled: false},
	}
	svc := NewService(channels)

	err := svc.Deliver(context.Background(), "We have a $5.00 donation from Bob")

	assert.ErrorIs(t, err, ErrNoChannels)
	for _, ch := range channels {
		assert.Empty(t, ch.(*mockChannel).messages(), "disabled channel should not be called")
	}
}

func TestDeliver_EmptyMessage(t *testing.T) {
	mock := &mockChannel{name: "discord", enabled: true}
	svc := NewService([]Channel{mock})

	assert.ErrorIs(t, svc.Deliver(context.Background(), "   "), ErrEmptyMessage)
	assert.Empty(t, mock.messages())
}

func TestDeliver_SendsInConfiguredOrder(t *testing.T) {
	log := &sendLog{}
	channels := []Channel{
		&mockChannel{name: "twitch:#alpha", enabled: true, log: log},
		&mockChannel{name: "discord", enabled: true, log: log},
		&mockChannel{name: "disabled", enabled: false, log: log},
		&mockChannel{name: "slack", enabled: true, log: log},
	}
	svc := NewService(channels)

	require.NoError(t, svc.Deliver(context.Background(), "first"))
	require.NoError(t, svc.Deliver(context.Background(), "second"))

	assert.Equal(t, []string{
		"twitch:#alpha: first",
		"discord: first",
		"slack: first",
		"twitch:#alpha: second",
		"discord: second",
		"slack: second",
	}, log.all())
}

func TestDeliver_AttemptsEveryChannelOnFailure(t *testing.T) {
	discord := &mockChannel{name: "discord", enabled: true, sendError: errors.New("discord API server error")}
	panicky := &mockChannel{name: "twitch:#alpha", enabled: true, panicOnSend: true}
	slack := &mockChannel{name: "slack", enabled: true}
	svc := NewService([]Channel{discord, panicky, slack})

	err := svc.Deliver(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, []string{"discord", "twitch:#alpha"}, FailedChannels(err))
	assert.Equal(t, []string{"hello"}, slack.messages(), "healthy channel should still receive the message")

	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, "discord", chErr.Channel)
	assert.Contains(t, err.Error(), "panicked")
}

func TestDeliver_CircuitBreakerOpens(t *testing.T) {
	failing := &mockChannel{name: "breaker-test", enabled: true, sendError: errors.New("boom")}
	healthy := &mockChannel{name: "breaker-healthy", enabled: true}
	svc := NewService([]Channel{failing, healthy})

	droppedBefore := testutil.ToFloat64(deliverySkippedTotal.WithLabelValues("breaker-test", "circuit_open"))
	openedBefore := testutil.ToFloat64(breakerTripsTotal.WithLabelValues("breaker-test"))

	for i := 0; i < 3; i++ {
		require.Error(t, svc.Deliver(context.Background(), "hello"))
	}

	err := svc.Deliver(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Len(t, failing.messages(), 3, "open breaker must not reach the channel")
	assert.Len(t, healthy.messages(), 4)
	assert.Equal(t, droppedBefore+1, testutil.ToFloat64(deliverySkippedTotal.WithLabelValues("breaker-test", "circuit_open")))
	assert.Equal(t, openedBefore+1, testutil.ToFloat64(breakerTripsTotal.WithLabelValues("breaker-test")))

	health := svc.GetChannelHealth()
	require.Len(t, health, 2)
	assert.Equal(t, ChannelHealthStatus{
		Name:                "breaker-test",
		Enabled:             true,
		CircuitBreakerOpen:  true,
		State:               "open",
		ConsecutiveFailures: 0,
	}, health[0])
	assert.Equal(t, "closed", health[1].State)
	assert.False(t, health[1].CircuitBreakerOpen)
}

func TestDeliver_CanceledSendsDoNotTripBreaker(t *testing.T) {
	mock := &mockChannel{name: "cancel-test", enabled: true, sendError: context.Canceled}
	svc := NewService([]Channel{mock})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, svc.Deliver(context.Background(), "hello"), context.Canceled)
	}

	assert.Len(t, mock.messages(), 5)
	assert.False(t, svc.GetChannelHealth()[0].CircuitBreakerOpen)
}

func TestDeliver_RecoversAfterFailure(t *testing.T) {
	mock := &mockChannel{name: "recover-test", enabled: true, sendError: errors.New("timeout")}
	svc := NewService([]Channel{mock})

	require.Error(t, svc.Deliver(context.Background(), "hello"))
	assert.Equal(t, uint32(1), svc.GetChannelHealth()[0].ConsecutiveFailures)

	mock.setError(nil)
	require.NoError(t, svc.Deliver(context.Background(), "hello"))
	assert.Equal(t, uint32(0), svc.GetChannelHealth()[0].ConsecutiveFailures)
}

func TestDeliver_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	failing := &mockChannel{name: "span-failing", enabled: true, sendError: errors.New("boom")}
	healthy := &mockChannel{name: "span-healthy", enabled: true}
	svc := NewService([]Channel{failing, healthy}, WithTracer(provider.Tracer("test")))

	require.Error(t, svc.Deliver(context.Background(), "hello"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "notify.deliver", span.Name())
	assert.Equal(t, otelcodes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.Int("notify.channels", 2))
	assert.Contains(t, span.Attributes(), attribute.Int("notify.failed", 1))
}

func TestDeliverRemaining_SkipsDeliveredChannels(t *testing.T) {
	twitch := &mockChannel{name: "remaining-twitch", enabled: true}
	slack := &mockChannel{name: "remaining-slack", enabled: true, sendError: errors.New("webhook revoked")}
	svc := NewService([]Channel{twitch, slack})

	delivered := map[string]bool{}
	for i := 0; i < 2; i++ {
		err := svc.DeliverRemaining(context.Background(), "hello", delivered)
		assert.Equal(t, []string{"remaining-slack"}, FailedChannels(err))
	}

	assert.Len(t, twitch.messages(), 1, "a channel that accepted the message must not get it again")
	assert.Len(t, slack.messages(), 2)
	assert.Equal(t, map[string]bool{"remaining-twitch": true}, delivered)

	slack.setError(nil)
	require.NoError(t, svc.DeliverRemaining(context.Background(), "hello", delivered))
	assert.Len(t, twitch.messages(), 1)
	assert.Equal(t, map[string]bool{"remaining-twitch": true, "remaining-slack": true}, delivered)

	require.NoError(t, svc.DeliverRemaining(context.Background(), "hello", delivered), "nothing left to send")
	assert.Len(t, slack.messages(), 3)
}

func TestDeliverRemaining_NoChannelsEnabled(t *testing.T) {
	svc := NewService([]Channel{&mockChannel{name: "remaining-off", enabled: false}})

	assert.ErrorIs(t, svc.DeliverRemaining(context.Background(), "hello", map[string]bool{}), ErrNoChannels)
}
