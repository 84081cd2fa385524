package events

import (
	"context"
	"time"
)

// Repository defines persistence for usage events
type Repository interface {
	// Create inserts an event; a duplicate (app_id, idempotency_key)
	// surfaces as an already-exists error, which ingestion counts as a
	// duplicate rather than a failure.
	Create(ctx context.Context, e *UsageEvent) error
	GetByID(ctx context.Context, id string) (*UsageEvent, error)
	// ListUnpriced returns events with priced_at unset whose next retry
	// is due, ordered by created_at ascending.
	ListUnpriced(ctx context.Context, now time.Time, limit int) ([]*UsageEvent, error)
	// MarkPriced sets priced_at. Used both on success and to flag a
	// permanently failed event so it is never picked up again.
	MarkPriced(ctx context.Context, id string, at time.Time) error
	// ScheduleRetry bumps retry_count and sets next_retry_at.
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error
	ListByBillTo(ctx context.Context, appID, billToID string, from, to time.Time) ([]*UsageEvent, error)
}
