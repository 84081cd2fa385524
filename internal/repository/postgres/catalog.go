package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/catalog"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type catalogRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewCatalogRepository(db *pg.DB, logger *logger.Logger) catalog.Repository {
	return &catalogRepository{db: db, logger: logger}
}

func (r *catalogRepository) CreatePlan(ctx context.Context, p *catalog.Plan) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO plans (id, app_id, code, name, feature_flags, created_at, updated_at)
		VALUES (:id, :app_id, :code, :name, :feature_flags, :created_at, :updated_at)`, p)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A plan with code %s already exists", p.Code).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create plan").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *catalogRepository) GetPlanByID(ctx context.Context, id string) (*catalog.Plan, error) {
	q := r.db.GetQuerier(ctx)

	var p catalog.Plan
	err := q.GetContext(ctx, &p, `
		SELECT id, app_id, code, name, feature_flags, created_at, updated_at
		FROM plans WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("plan not found").
				WithHintf("Plan with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *catalogRepository) GetPlanByCode(ctx context.Context, appID, code string) (*catalog.Plan, error) {
	q := r.db.GetQuerier(ctx)

	var p catalog.Plan
	err := q.GetContext(ctx, &p, `
		SELECT id, app_id, code, name, feature_flags, created_at, updated_at
		FROM plans WHERE app_id = $1 AND code = $2`, appID, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("plan not found").
				WithHintf("Plan with code %s was not found", code).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *catalogRepository) CreateAddon(ctx context.Context, a *catalog.Addon) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO addons (id, app_id, code, name, created_at, updated_at)
		VALUES (:id, :app_id, :code, :name, :created_at, :updated_at)`, a)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("An addon with code %s already exists", a.Code).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create addon").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *catalogRepository) GetAddonByCode(ctx context.Context, appID, code string) (*catalog.Addon, error) {
	q := r.db.GetQuerier(ctx)

	var a catalog.Addon
	err := q.GetContext(ctx, &a, `
		SELECT id, app_id, code, name, created_at, updated_at
		FROM addons WHERE app_id = $1 AND code = $2`, appID, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("addon not found").
				WithHintf("Addon with code %s was not found", code).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get addon").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

func (r *catalogRepository) CreateProductMap(ctx context.Context, m *catalog.ProductMap) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO stripe_product_maps (id, plan_id, addon_id, kind, gateway_product_id, gateway_price_id)
		VALUES (:id, :plan_id, :addon_id, :kind, :gateway_product_id, :gateway_price_id)`, m)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create product map").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *catalogRepository) ListProductMapsForPlan(ctx context.Context, planID string) ([]*catalog.ProductMap, error) {
	q := r.db.GetQuerier(ctx)

	maps := []*catalog.ProductMap{}
	err := q.SelectContext(ctx, &maps, `
		SELECT id, plan_id, addon_id, kind, gateway_product_id, gateway_price_id
		FROM stripe_product_maps WHERE plan_id = $1`, planID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list product maps").
			Mark(ierr.ErrDatabase)
	}
	return maps, nil
}
