package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/meterline/meterline/internal/domain/events"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type eventRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewEventRepository(db *pg.DB, logger *logger.Logger) events.Repository {
	return &eventRepository{db: db, logger: logger}
}

const selectEvent = `
	SELECT id, app_id, team_id, user_id, bill_to_id, event_type, timestamp,
	       idempotency_key, payload, source, priced_at, retry_count, next_retry_at,
	       created_at, updated_at
	FROM usage_events`

func (r *eventRepository) Create(ctx context.Context, e *events.UsageEvent) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO usage_events (id, app_id, team_id, user_id, bill_to_id, event_type, timestamp,
		                          idempotency_key, payload, source, priced_at, retry_count,
		                          next_retry_at, created_at, updated_at)
		VALUES (:id, :app_id, :team_id, :user_id, :bill_to_id, :event_type, :timestamp,
		        :idempotency_key, :payload, :source, :priced_at, :retry_count,
		        :next_retry_at, :created_at, :updated_at)`, e)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An event with this idempotency key already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create usage event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*events.UsageEvent, error) {
	q := r.db.GetQuerier(ctx)

	var e events.UsageEvent
	err := q.GetContext(ctx, &e, selectEvent+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("usage event not found").
				WithHintf("Usage event with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get usage event").
			Mark(ierr.ErrDatabase)
	}
	return &e, nil
}

func (r *eventRepository) ListUnpriced(ctx context.Context, now time.Time, limit int) ([]*events.UsageEvent, error) {
	q := r.db.GetQuerier(ctx)

	list := []*events.UsageEvent{}
	err := q.SelectContext(ctx, &list, selectEvent+`
		WHERE priced_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list unpriced events").
			Mark(ierr.ErrDatabase)
	}
	return list, nil
}

func (r *eventRepository) MarkPriced(ctx context.Context, id string, at time.Time) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		UPDATE usage_events SET priced_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark event priced").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		UPDATE usage_events SET retry_count = $1, next_retry_at = $2 WHERE id = $3`,
		retryCount, nextRetryAt, id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to schedule event retry").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventRepository) ListByBillTo(ctx context.Context, appID, billToID string, from, to time.Time) ([]*events.UsageEvent, error) {
	q := r.db.GetQuerier(ctx)

	list := []*events.UsageEvent{}
	err := q.SelectContext(ctx, &list, selectEvent+`
		WHERE app_id = $1 AND bill_to_id = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`, appID, billToID, from, to)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage events").
			Mark(ierr.ErrDatabase)
	}
	return list, nil
}
