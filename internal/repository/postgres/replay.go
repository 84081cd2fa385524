package postgres

import (
	"context"
	"time"

	domainauth "github.com/meterline/meterline/internal/domain/auth"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type replayRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewReplayRepository(db *pg.DB, logger *logger.Logger) domainauth.ReplayRepository {
	return &replayRepository{db: db, logger: logger}
}

func (r *replayRepository) Insert(ctx context.Context, jti string, expiresAt time.Time) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO jti_records (jti, expires_at) VALUES ($1, $2)`, jti, expiresAt)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Token has already been used").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record token use").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *replayRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	q := r.db.GetQuerier(ctx)

	res, err := q.ExecContext(ctx, `
		DELETE FROM jti_records WHERE expires_at < $1`, before)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to delete expired token records").
			Mark(ierr.ErrDatabase)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to delete expired token records").
			Mark(ierr.ErrDatabase)
	}
	return rows, nil
}
