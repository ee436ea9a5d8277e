package poll

import (
	"errors"
	"fmt"
)

// ErrUnorderedPage is returned when a donation page is not most-recent-first.
// The cycle is abandoned with the watermark untouched.
var ErrUnorderedPage = errors.New("donation page is not ordered most-recent-first")

// DeliveryError reports a donation that could not be announced on every
// destination. The watermark stays on the previous donation, so this one and
// everything after it are retried next cycle. Destinations listed in Delivered
// already accepted the message and are not sent it again.
type DeliveryError struct {
	DonationID string
	Delivered  []string
	Attempts   int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver donation %s: %v", e.DonationID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
