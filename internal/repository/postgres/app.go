package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/app"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type appRepository struct {
	db     *pg.DB
	logger *logger.Logger
	clock  types.Clock
}

func NewAppRepository(db *pg.DB, logger *logger.Logger, clock types.Clock) app.Repository {
	return &appRepository{db: db, logger: logger, clock: clock}
}

func (r *appRepository) CreateApp(ctx context.Context, a *app.App) error {
	r.logger.Debugw("creating app", "app_id", a.ID, "name", a.Name)

	q := r.db.GetQuerier(ctx)
	_, err := q.NamedExecContext(ctx, `
		INSERT INTO apps (id, name, status, created_at, updated_at)
		VALUES (:id, :name, :status, :created_at, :updated_at)`, a)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An app with this ID already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create app").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *appRepository) GetApp(ctx context.Context, id string) (*app.App, error) {
	q := r.db.GetQuerier(ctx)

	var a app.App
	err := q.GetContext(ctx, &a, `
		SELECT id, name, status, created_at, updated_at
		FROM apps WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("app not found").
				WithHintf("App with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get app").
			Mark(ierr.ErrDatabase)
	}
	return &a, nil
}

func (r *appRepository) CreateSecret(ctx context.Context, s *app.Secret) error {
	r.logger.Debugw("creating app secret", "app_id", s.AppID, "kid", s.Kid)

	q := r.db.GetQuerier(ctx)
	_, err := q.NamedExecContext(ctx, `
		INSERT INTO app_secrets (id, app_id, kid, encrypted_secret, status, created_at, revoked_at)
		VALUES (:id, :app_id, :kid, :encrypted_secret, :status, :created_at, :revoked_at)`, s)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A secret with this key ID already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create secret").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *appRepository) GetSecretByKid(ctx context.Context, kid string) (*app.Secret, error) {
	q := r.db.GetQuerier(ctx)

	var s app.Secret
	err := q.GetContext(ctx, &s, `
		SELECT id, app_id, kid, encrypted_secret, status, created_at, revoked_at
		FROM app_secrets WHERE kid = $1`, kid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("secret not found").
				WithHintf("Secret with key ID %s was not found", kid).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get secret").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *appRepository) ListSecrets(ctx context.Context, appID string) ([]*app.Secret, error) {
	q := r.db.GetQuerier(ctx)

	secrets := []*app.Secret{}
	err := q.SelectContext(ctx, &secrets, `
		SELECT id, app_id, kid, encrypted_secret, status, created_at, revoked_at
		FROM app_secrets WHERE app_id = $1
		ORDER BY created_at DESC`, appID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list secrets").
			Mark(ierr.ErrDatabase)
	}
	return secrets, nil
}

func (r *appRepository) RevokeSecret(ctx context.Context, appID, kid string) error {
	q := r.db.GetQuerier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE app_secrets SET status = $1, revoked_at = $2
		WHERE app_id = $3 AND kid = $4 AND status = $5`,
		types.SecretStatusRevoked, r.clock.Now(), appID, kid, types.SecretStatusActive)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to revoke secret").
			Mark(ierr.ErrDatabase)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to revoke secret").
			Mark(ierr.ErrDatabase)
	}
	if rows == 0 {
		// Either already revoked (a no-op) or unknown; distinguish so
		// revoking a missing kid still 404s.
		var exists bool
		if err := q.GetContext(ctx, &exists, `
			SELECT EXISTS(SELECT 1 FROM app_secrets WHERE app_id = $1 AND kid = $2)`,
			appID, kid); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to revoke secret").
				Mark(ierr.ErrDatabase)
		}
		if !exists {
			return ierr.NewError("secret not found").
				WithHintf("Secret with key ID %s was not found", kid).
				Mark(ierr.ErrNotFound)
		}
	}
	return nil
}
