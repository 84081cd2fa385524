package audit

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/types"
)

// Log records one administrative or financial action for later review
type Log struct {
	ID         string        `db:"id" json:"id"`
	Action     string        `db:"action" json:"action"`
	EntityType string        `db:"entity_type" json:"entity_type"`
	EntityID   string        `db:"entity_id" json:"entity_id"`
	Actor      string        `db:"actor" json:"actor"`
	At         time.Time     `db:"at" json:"at"`
	Payload    types.Payload `db:"payload" json:"payload,omitempty"`
}

func (l *Log) TableName() string {
	return "audit_logs"
}

// Repository defines persistence for audit logs
type Repository interface {
	Create(ctx context.Context, l *Log) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*Log, error)
}
