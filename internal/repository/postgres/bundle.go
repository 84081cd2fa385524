package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/bundle"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type bundleRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewBundleRepository(db *pg.DB, logger *logger.Logger) bundle.Repository {
	return &bundleRepository{db: db, logger: logger}
}

func (r *bundleRepository) Create(ctx context.Context, b *bundle.Bundle) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO bundles (id, code, name, status, created_at, updated_at)
		VALUES (:id, :code, :name, :status, :created_at, :updated_at)`, b)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A bundle with code %s already exists", b.Code).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create bundle").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *bundleRepository) Update(ctx context.Context, b *bundle.Bundle) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		UPDATE bundles SET name = :name, status = :status, updated_at = :updated_at
		WHERE id = :id`, b)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update bundle").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *bundleRepository) GetByID(ctx context.Context, id string) (*bundle.Bundle, error) {
	q := r.db.GetQuerier(ctx)

	var b bundle.Bundle
	err := q.GetContext(ctx, &b, `
		SELECT id, code, name, status, created_at, updated_at
		FROM bundles WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("bundle not found").
				WithHintf("Bundle with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get bundle").
			Mark(ierr.ErrDatabase)
	}
	return &b, nil
}

func (r *bundleRepository) GetByCode(ctx context.Context, code string) (*bundle.Bundle, error) {
	q := r.db.GetQuerier(ctx)

	var b bundle.Bundle
	err := q.GetContext(ctx, &b, `
		SELECT id, code, name, status, created_at, updated_at
		FROM bundles WHERE code = $1`, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("bundle not found").
				WithHintf("Bundle with code %s was not found", code).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get bundle").
			Mark(ierr.ErrDatabase)
	}
	return &b, nil
}

func (r *bundleRepository) UpsertApp(ctx context.Context, a *bundle.App) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO bundle_apps (id, bundle_id, app_id, default_feature_flags)
		VALUES (:id, :bundle_id, :app_id, :default_feature_flags)
		ON CONFLICT (bundle_id, app_id) DO UPDATE
		SET default_feature_flags = EXCLUDED.default_feature_flags`, a)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert bundle app").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *bundleRepository) GetApp(ctx context.Context, bundleID, appID string) (*bundle.App, error) {
	q := r.db.GetQuerier(ctx)

	var a bundle.App
	err := q.GetContext(ctx, &a, `
		SELECT id, bundle_id, app_id, default_feature_flags
		FROM bundle_apps WHERE bundle_id = $1 AND app_id = $2`, bundleID, appID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("bundle app not found").
				WithHintf("Bundle %s does not include app %s", bundleID, appID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get bundle app").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

func (r *bundleRepository) UpsertMeterPolicy(ctx context.Context, p *bundle.MeterPolicy) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO bundle_meter_policies (id, bundle_id, app_id, meter_key,
		                                   limit_type, included_amount, enforcement, overage_billing)
		VALUES (:id, :bundle_id, :app_id, :meter_key,
		        :limit_type, :included_amount, :enforcement, :overage_billing)
		ON CONFLICT (bundle_id, app_id, meter_key) DO UPDATE
		SET limit_type = EXCLUDED.limit_type,
		    included_amount = EXCLUDED.included_amount,
		    enforcement = EXCLUDED.enforcement,
		    overage_billing = EXCLUDED.overage_billing`, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert meter policy").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *bundleRepository) ListMeterPolicies(ctx context.Context, bundleID, appID string) ([]*bundle.MeterPolicy, error) {
	q := r.db.GetQuerier(ctx)

	policies := []*bundle.MeterPolicy{}
	err := q.SelectContext(ctx, &policies, `
		SELECT id, bundle_id, app_id, meter_key, limit_type, included_amount, enforcement, overage_billing
		FROM bundle_meter_policies WHERE bundle_id = $1 AND app_id = $2
		ORDER BY meter_key ASC`, bundleID, appID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list meter policies").
			Mark(ierr.ErrDatabase)
	}
	return policies, nil
}

func (r *bundleRepository) ListAllMeterPolicies(ctx context.Context, bundleID string) ([]*bundle.MeterPolicy, error) {
	q := r.db.GetQuerier(ctx)

	policies := []*bundle.MeterPolicy{}
	err := q.SelectContext(ctx, &policies, `
		SELECT id, bundle_id, app_id, meter_key, limit_type, included_amount, enforcement, overage_billing
		FROM bundle_meter_policies WHERE bundle_id = $1
		ORDER BY app_id ASC, meter_key ASC`, bundleID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list meter policies").
			Mark(ierr.ErrDatabase)
	}
	return policies, nil
}
