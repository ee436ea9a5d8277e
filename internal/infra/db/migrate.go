package db

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrateUp creates the checkpoint schema. It is safe to run on every start.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS donation_watermarks (
    campaign_id      TEXT PRIMARY KEY,
    last_donation_id TEXT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_donation_watermarks_updated_at ON donation_watermarks(updated_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}
	return nil
}

// MigrateDown drops the checkpoint schema. Stored watermarks are lost.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`DROP INDEX IF EXISTS idx_donation_watermarks_updated_at`,
		`DROP TABLE IF EXISTS donation_watermarks`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}
	return nil
}
