// Package db opens the optional checkpoint database and manages its schema.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"donation-relay/internal/observability/logging"
	"donation-relay/internal/pkg/config"
)

const pingTimeout = 5 * time.Second

// PoolConfig sizes the connection pool. The relay writes one row per
// announced donation, so the defaults are small.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the pool settings used when DB_* variables are unset.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// LoadPoolConfig reads DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME. Bad values fall back to the
// default per field with a warning on logger.
func LoadPoolConfig(logger *slog.Logger) PoolConfig {
	def := DefaultPoolConfig()
	report := config.NewReport(logger, nil)
	conns := func(v int) error { return config.ValidateIntRange(v, 1, 100) }

	return PoolConfig{
		MaxOpenConns:    config.Apply(report, "db_max_open_conns", config.LoadEnvInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns, conns)),
		MaxIdleConns:    config.Apply(report, "db_max_idle_conns", config.LoadEnvInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns, conns)),
		ConnMaxLifetime: config.Apply(report, "db_conn_max_lifetime", config.LoadEnvDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime, config.ValidatePositiveDuration)),
		ConnMaxIdleTime: config.Apply(report, "db_conn_max_idle_time", config.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", def.ConnMaxIdleTime, config.ValidatePositiveDuration)),
	}
}

// Open connects to dsn through pgx, applies pool and verifies the connection
// with a ping. Driver errors are sanitized so the DSN password never reaches
// a log line.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("open database: empty DATABASE_URL")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %s", logging.SanitizeError(err))
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %s", logging.SanitizeError(err))
	}
	return db, nil
}
