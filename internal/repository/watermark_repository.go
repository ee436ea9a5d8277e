package repository

import (
	"context"
	"time"
)

// Checkpoint is the stored watermark of one campaign.
type Checkpoint struct {
	CampaignID     string
	LastDonationID string
	UpdatedAt      time.Time
}

// WatermarkRepository persists the last announced donation per campaign so a
// restarted relay can resume where it left off.
type WatermarkRepository interface {
	// Load returns the checkpoint for campaignID.
	// Returns entity.ErrNotFound when none has been saved.
	Load(ctx context.Context, campaignID string) (*Checkpoint, error)

	// Save upserts the checkpoint for campaignID.
	Save(ctx context.Context, campaignID, donationID string) error
}
