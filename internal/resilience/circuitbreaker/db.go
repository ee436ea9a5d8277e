package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// CheckpointConfig is used for the watermark checkpoint database. A missing
// row is a normal answer, not a failure.
func CheckpointConfig() Config {
	return Config{
		Name:             "checkpoint-db",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, sql.ErrNoRows)
		},
	}
}

// DBCircuitBreaker guards database calls. While open, calls fail fast with
// gobreaker.ErrOpenState instead of waiting on a dead connection.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker wraps db with CheckpointConfig.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, CheckpointConfig())
}

// NewDBCircuitBreakerWithConfig wraps db with cfg.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{
		cb: New(cfg),
		db: db,
	}
}

// ExecContext runs a statement through the breaker.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryRowScan runs a single-row query through the breaker and scans it into
// dest. sql.ErrNoRows is returned unchanged.
func (dcb *DBCircuitBreaker) QueryRowScan(ctx context.Context, query string, args []any, dest ...any) error {
	return dcb.cb.Run(func() error {
		return dcb.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
}

// State returns the breaker state.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether calls are currently rejected.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB returns the underlying handle.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
