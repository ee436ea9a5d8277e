package poll

import (
	"github.com/shopspring/decimal"

	"donation-relay/internal/domain/entity"
)

// Watermark remembers the last announced donation and the minimum amount worth
// announcing. It only moves forward through Advance, which the poller calls
// after a donation reached every destination.
type Watermark struct {
	lastID  string
	set     bool
	minimum decimal.Decimal
}

// NewWatermark returns an unset watermark with the given threshold.
func NewWatermark(minimum decimal.Decimal) *Watermark {
	return &Watermark{minimum: minimum}
}

// IsNew reports whether d should be announced: it is not the watermark
// donation and its amount is at least the minimum.
func (w *Watermark) IsNew(d *entity.Donation) bool {
	return !w.Reached(d) && d.Amount.Value.GreaterThanOrEqual(w.minimum)
}

// Reached reports whether d is the last announced donation.
func (w *Watermark) Reached(d *entity.Donation) bool {
	return w.set && d.ID == w.lastID
}

// Advance records id as the last announced donation.
func (w *Watermark) Advance(id string) {
	w.lastID = id
	w.set = true
}

// Last returns the last announced id and whether one is set.
func (w *Watermark) Last() (string, bool) {
	return w.lastID, w.set
}

// Minimum returns the announcement threshold.
func (w *Watermark) Minimum() decimal.Decimal {
	return w.minimum
}
