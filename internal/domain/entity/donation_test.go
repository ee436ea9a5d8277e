package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDonation_UnmarshalJSON(t *testing.T) {
	t.Run("comment present", func(t *testing.T) {
		raw := `{
			"id": "5c1c7b2e-0d4f-4d1c-9d8e-3a3f4f7d2a10",
			"amount": {"value": "1234.50", "currency": "USD"},
			"donor_name": "Alice",
			"donor_comment": "Go team!",
			"completed_at": "2025-11-15T12:30:45.000000Z"
		}`

		var d Donation
		require.NoError(t, json.Unmarshal([]byte(raw), &d))

		assert.Equal(t, "5c1c7b2e-0d4f-4d1c-9d8e-3a3f4f7d2a10", d.ID)
		assert.True(t, d.Amount.Value.Equal(decimal.RequireFromString("1234.5")))
		assert.Equal(t, "USD", d.Amount.Currency)
		assert.Equal(t, "Alice", d.DonorName)
		require.NotNil(t, d.DonorComment)
		assert.Equal(t, "Go team!", *d.DonorComment)
		assert.Equal(t, time.Date(2025, 11, 15, 12, 30, 45, 0, time.UTC), d.CompletedAt.UTC())
	})

	t.Run("null comment stays absent", func(t *testing.T) {
		raw := `{"id": "d1", "amount": {"value": "5.00", "currency": "USD"}, "donor_name": "Anonymous", "donor_comment": null}`

		var d Donation
		require.NoError(t, json.Unmarshal([]byte(raw), &d))

		assert.Nil(t, d.DonorComment)
		assert.False(t, d.HasComment())
		assert.True(t, d.CompletedAt.IsZero())
	})
}

func TestDonation_HasComment(t *testing.T) {
	empty := ""
	blank := "   "
	text := "hello"

	tests := []struct {
		name    string
		comment *string
		want    bool
	}{
		{"absent", nil, false},
		{"empty", &empty, false},
		{"whitespace only", &blank, false},
		{"text", &text, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Donation{ID: "d1", DonorComment: tt.comment}
			assert.Equal(t, tt.want, d.HasComment())
		})
	}
}

func TestDonation_Validate(t *testing.T) {
	tests := []struct {
		name      string
		donation  Donation
		wantField string
	}{
		{
			name:     "valid",
			donation: Donation{ID: "d1", Amount: Amount{Value: decimal.NewFromInt(10)}},
		},
		{
			name:      "missing id",
			donation:  Donation{Amount: Amount{Value: decimal.NewFromInt(10)}},
			wantField: "id",
		},
		{
			name:      "negative amount",
			donation:  Donation{ID: "d1", Amount: Amount{Value: decimal.NewFromInt(-1)}},
			wantField: "amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.donation.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}
