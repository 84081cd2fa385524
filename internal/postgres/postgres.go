package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
)

// DB wraps sqlx.DB to provide transaction management
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Querier defines the database operations shared by *sqlx.DB and *sqlx.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// NewDB creates a new DB instance
func NewDB(config *config.Configuration, logger *logger.Logger) (*DB, error) {
	dsn := config.Postgres.GetDSN()
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	return &DB{DB: db, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if err := db.DB.Close(); err != nil {
		db.logger.Errorw("error closing database", "error", err)
	}
}

// Ping verifies the store is reachable; used by the health endpoint
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// GetQuerier returns either the transaction from context or the base DB
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return tx.Tx
	}
	return db.DB
}

// IsUniqueViolation reports whether err is a unique-index violation.
// Uniqueness violations are the authoritative "already done" signal for
// idempotency keys, jti replay detection, and event deduplication.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !asPqError(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505"
}

// IsUniqueViolationOn reports whether err is a unique violation on the
// named constraint.
func IsUniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	if !asPqError(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}

func asPqError(err error, target **pq.Error) bool {
	for err != nil {
		if pe, ok := err.(*pq.Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
