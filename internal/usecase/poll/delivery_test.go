package poll

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donation-relay/internal/domain/entity"
	"donation-relay/internal/usecase/notify"
)

// chatRoom is a notify.Channel that records what it accepted.
type chatRoom struct {
	name string

	mu       sync.Mutex
	err      error
	accepted []string
}

func (c *chatRoom) Name() string    { return c.name }
func (c *chatRoom) IsEnabled() bool { return true }

func (c *chatRoom) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.accepted = append(c.accepted, text)
	return nil
}

func (c *chatRoom) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *chatRoom) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.accepted...)
}

func newRelayPoller(page []entity.Donation, rooms []*chatRoom, opts ...Option) *Poller {
	channels := make([]notify.Channel, len(rooms))
	for i, r := range rooms {
		channels[i] = r
	}
	return NewPoller(campaignID, decimal.Zero,
		&fakeSource{results: []fetchResult{{page: page}}}, &fakeRefresher{},
		notify.NewService(channels), idFormatter{}, opts...)
}

func TestRunCycle_FailingDestinationDoesNotRepeatOnHealthyOnes(t *testing.T) {
	twitch := &chatRoom{name: "twitch:#stuck-healthy"}
	slack := &chatRoom{name: "stuck-slack", err: errors.New("webhook revoked")}
	p := newRelayPoller([]entity.Donation{donation("d2", "5"), donation("d1", "5")}, []*chatRoom{twitch, slack})
	p.state.Watermark.Advance("d0")

	for i := 0; i < 10; i++ {
		stats, err := p.RunCycle(context.Background())

		var deliveryErr *DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		assert.Equal(t, "d1", deliveryErr.DonationID)
		assert.Equal(t, []string{"twitch:#stuck-healthy"}, deliveryErr.Delivered)
		assert.Equal(t, i+1, deliveryErr.Attempts)
		assert.Zero(t, stats.Announced)
	}

	assert.Equal(t, []string{"d1"}, twitch.messages(), "healthy destination gets the donation once")
	assert.Empty(t, slack.messages())
	assert.Equal(t, "d0", watermarkOf(p))
}

func TestRunCycle_RecoveredDestinationCatchesUp(t *testing.T) {
	twitch := &chatRoom{name: "twitch:#catchup-healthy"}
	slack := &chatRoom{name: "catchup-slack", err: errors.New("status 503")}
	p := newRelayPoller([]entity.Donation{donation("d2", "5"), donation("d1", "5")}, []*chatRoom{twitch, slack})
	p.state.Watermark.Advance("d0")

	for i := 0; i < 2; i++ {
		_, err := p.RunCycle(context.Background())
		require.Error(t, err)
	}

	slack.setErr(nil)
	stats, err := p.RunCycle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Announced)
	assert.Equal(t, []string{"d1", "d2"}, twitch.messages())
	assert.Equal(t, []string{"d1", "d2"}, slack.messages())
	assert.Equal(t, "d2", watermarkOf(p))
	assert.Nil(t, p.state.Pending)
}

func TestRunCycle_MaxDeliveryAttempts(t *testing.T) {
	twitch := &chatRoom{name: "twitch:#limit-healthy"}
	slack := &chatRoom{name: "limit-slack", err: errors.New("webhook revoked")}
	p := newRelayPoller([]entity.Donation{donation("d2", "5"), donation("d1", "5")}, []*chatRoom{twitch, slack},
		WithMaxDeliveryAttempts(3))
	p.state.Watermark.Advance("d0")
	before := testutil.ToFloat64(deliveryAbandonedTotal)

	for i := 0; i < 2; i++ {
		_, err := p.RunCycle(context.Background())
		require.Error(t, err)
		assert.Equal(t, "d0", watermarkOf(p))
	}

	stats, err := p.RunCycle(context.Background())

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, "d2", deliveryErr.DonationID, "the next donation is tried once d1 is given up")
	assert.Equal(t, 1, stats.Abandoned)
	assert.Equal(t, "d1", watermarkOf(p))
	assert.Equal(t, []string{"d1", "d2"}, twitch.messages())
	assert.Equal(t, before+1, testutil.ToFloat64(deliveryAbandonedTotal))
}
