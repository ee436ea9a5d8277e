package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Donation represents a single donation made to a fundraising campaign.
// Donations are read-only records owned by the donation source; the relay never
// mutates them.
type Donation struct {
	// ID is the opaque identifier assigned by the donation source.
	// IDs are stable and unique within a campaign.
	ID string `json:"id"`

	// Amount is the donated value together with its currency.
	Amount Amount `json:"amount"`

	// DonorName is the display name chosen by the donor.
	// Anonymous donors carry a placeholder name supplied by the source.
	DonorName string `json:"donor_name"`

	// DonorComment is the optional message attached to the donation.
	// nil means the donor left no comment, which is distinct from an empty comment.
	DonorComment *string `json:"donor_comment"`

	// CompletedAt is when the donation was completed. It is zero when the
	// source did not report it.
	CompletedAt time.Time `json:"completed_at"`
}

// Amount is a decimal money value with currency context.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// HasComment reports whether the donor left a non-empty comment.
func (d *Donation) HasComment() bool {
	return d.DonorComment != nil && strings.TrimSpace(*d.DonorComment) != ""
}

// Validate checks the fields the relay depends on.
func (d *Donation) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if d.Amount.Value.IsNegative() {
		return &ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return nil
}

// Campaign identifies the fundraising campaign being relayed.
// It is resolved once at startup and never changes for the process lifetime.
type Campaign struct {
	ID           string
	UserSlug     string
	CampaignSlug string
}
