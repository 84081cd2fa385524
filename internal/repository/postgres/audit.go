package postgres

import (
	"context"

	"github.com/meterline/meterline/internal/domain/audit"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type auditRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewAuditRepository(db *pg.DB, logger *logger.Logger) audit.Repository {
	return &auditRepository{db: db, logger: logger}
}

func (r *auditRepository) Create(ctx context.Context, l *audit.Log) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor, at, payload)
		VALUES (:id, :action, :entity_type, :entity_id, :actor, :at, :payload)`, l)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to write audit log").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*audit.Log, error) {
	q := r.db.GetQuerier(ctx)

	logs := []*audit.Log{}
	err := q.SelectContext(ctx, &logs, `
		SELECT id, action, entity_type, entity_id, actor, at, payload
		FROM audit_logs WHERE entity_type = $1 AND entity_id = $2
		ORDER BY at DESC`, entityType, entityID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list audit logs").
			Mark(ierr.ErrDatabase)
	}
	return logs, nil
}
