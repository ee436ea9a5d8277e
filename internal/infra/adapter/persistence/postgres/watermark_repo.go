package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"donation-relay/internal/domain/entity"
	"donation-relay/internal/observability/metrics"
	"donation-relay/internal/repository"
	"donation-relay/internal/resilience/circuitbreaker"
)

// WatermarkRepo stores one checkpoint row per campaign. Every query goes
// through the checkpoint circuit breaker.
type WatermarkRepo struct{ db *circuitbreaker.DBCircuitBreaker }

// NewWatermarkRepo wraps db in a checkpoint circuit breaker.
func NewWatermarkRepo(db *sql.DB) repository.WatermarkRepository {
	return &WatermarkRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

func (repo *WatermarkRepo) Load(ctx context.Context, campaignID string) (*repository.Checkpoint, error) {
	const query = `
SELECT campaign_id, last_donation_id, updated_at
FROM donation_watermarks
WHERE campaign_id = $1`

	start := time.Now()
	defer func() { metrics.RecordDBQuery("load_watermark", time.Since(start)) }()

	var cp repository.Checkpoint
	err := repo.db.QueryRowScan(ctx, query, []any{campaignID},
		&cp.CampaignID, &cp.LastDonationID, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cp, nil
}

func (repo *WatermarkRepo) Save(ctx context.Context, campaignID, donationID string) error {
	const query = `
INSERT INTO donation_watermarks (campaign_id, last_donation_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (campaign_id)
DO UPDATE SET last_donation_id = EXCLUDED.last_donation_id, updated_at = EXCLUDED.updated_at`

	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_watermark", time.Since(start)) }()

	if _, err := repo.db.ExecContext(ctx, query, campaignID, donationID); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}
