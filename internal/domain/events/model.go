package events

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// UsageEvent is one metered occurrence reported by an app. Events are
// deduplicated on (app_id, idempotency_key) and priced asynchronously;
// priced_at set is the terminal state.
type UsageEvent struct {
	ID             string        `db:"id" json:"id"`
	AppID          string        `db:"app_id" json:"app_id"`
	TeamID         *string       `db:"team_id" json:"team_id,omitempty"`
	UserID         *string       `db:"user_id" json:"user_id,omitempty"`
	BillToID       string        `db:"bill_to_id" json:"bill_to_id"`
	EventType      string        `db:"event_type" json:"event_type"`
	Timestamp      time.Time     `db:"timestamp" json:"timestamp"`
	IdempotencyKey string        `db:"idempotency_key" json:"idempotency_key"`
	Payload        types.Payload `db:"payload" json:"payload"`
	Source         string        `db:"source" json:"source"`
	PricedAt       *time.Time    `db:"priced_at" json:"priced_at,omitempty"`
	RetryCount     int           `db:"retry_count" json:"retry_count"`
	NextRetryAt    *time.Time    `db:"next_retry_at" json:"next_retry_at,omitempty"`
	types.BaseModel
}

func (e *UsageEvent) TableName() string {
	return "usage_events"
}

func (e *UsageEvent) Validate() error {
	if e.AppID == "" {
		return ierr.NewError("app_id is required").
			WithHint("App ID is required").
			Mark(ierr.ErrValidation)
	}
	if e.EventType == "" {
		return ierr.NewError("event_type is required").
			WithHint("Event type is required").
			Mark(ierr.ErrValidation)
	}
	if e.IdempotencyKey == "" {
		return ierr.NewError("idempotency_key is required").
			WithHint("Idempotency key is required").
			Mark(ierr.ErrValidation)
	}
	if e.Timestamp.IsZero() {
		return ierr.NewError("timestamp is required").
			WithHint("Event timestamp is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
