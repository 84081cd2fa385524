package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type teamRepository struct {
	db     *pg.DB
	logger *logger.Logger
	clock  types.Clock
}

func NewTeamRepository(db *pg.DB, logger *logger.Logger, clock types.Clock) team.Repository {
	return &teamRepository{db: db, logger: logger, clock: clock}
}

const selectTeam = `
	SELECT id, app_id, name, kind, owner_user_id, default_currency,
	       stripe_customer_id, billing_mode, bill_to_id, created_at, updated_at
	FROM teams`

func (r *teamRepository) Create(ctx context.Context, t *team.Team, externalTeamID string) error {
	r.logger.Debugw("creating team", "team_id", t.ID, "app_id", t.AppID, "external_team_id", externalTeamID)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		_, err := q.ExecContext(ctx, `
			INSERT INTO billing_entities (id, type, team_id)
			VALUES ($1, $2, $3)`, t.BillToID, "TEAM", t.ID)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create billing entity").
				Mark(ierr.ErrDatabase)
		}

		_, err = q.NamedExecContext(ctx, `
			INSERT INTO teams (id, app_id, name, kind, owner_user_id, default_currency,
			                   stripe_customer_id, billing_mode, bill_to_id, created_at, updated_at)
			VALUES (:id, :app_id, :name, :kind, :owner_user_id, :default_currency,
			        :stripe_customer_id, :billing_mode, :bill_to_id, :created_at, :updated_at)`, t)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create team").
				Mark(ierr.ErrDatabase)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO external_team_refs (app_id, external_team_id, team_id)
			VALUES ($1, $2, $3)`, t.AppID, externalTeamID, t.ID)
		if err != nil {
			if pg.IsUniqueViolation(err) {
				return ierr.WithError(err).
					WithHint("A team with this external ID already exists").
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHint("Failed to create external team reference").
				Mark(ierr.ErrDatabase)
		}
		return nil
	})
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*team.Team, error) {
	q := r.db.GetQuerier(ctx)

	var t team.Team
	err := q.GetContext(ctx, &t, selectTeam+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("team not found").
				WithHintf("Team with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get team").
			Mark(ierr.ErrDatabase)
	}
	return &t, nil
}

func (r *teamRepository) GetByExternalRef(ctx context.Context, appID, externalTeamID string) (*team.Team, error) {
	q := r.db.GetQuerier(ctx)

	var t team.Team
	err := q.GetContext(ctx, &t, selectTeam+`
		WHERE id = (SELECT team_id FROM external_team_refs WHERE app_id = $1 AND external_team_id = $2)`,
		appID, externalTeamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("team not found").
				WithHintf("Team with external ID %s was not found", externalTeamID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get team").
			Mark(ierr.ErrDatabase)
	}
	return &t, nil
}

func (r *teamRepository) GetByBillTo(ctx context.Context, billToID string) (*team.Team, error) {
	q := r.db.GetQuerier(ctx)

	var t team.Team
	err := q.GetContext(ctx, &t, selectTeam+` WHERE bill_to_id = $1`, billToID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("team not found").
				WithHintf("No team owns billing entity %s", billToID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get team").
			Mark(ierr.ErrDatabase)
	}
	return &t, nil
}

func (r *teamRepository) ClaimStripeCustomerID(ctx context.Context, teamID, customerID string) (bool, error) {
	q := r.db.GetQuerier(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE teams SET stripe_customer_id = $1, updated_at = $2
		WHERE id = $3 AND stripe_customer_id IS NULL`,
		customerID, r.clock.Now(), teamID)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to set gateway customer ID").
			Mark(ierr.ErrDatabase)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to set gateway customer ID").
			Mark(ierr.ErrDatabase)
	}
	return rows > 0, nil
}

func (r *teamRepository) UpsertMember(ctx context.Context, m *team.Member) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO team_members (id, team_id, user_id, role, status, started_at, ended_at)
		VALUES (:id, :team_id, :user_id, :role, :status, :started_at, :ended_at)
		ON CONFLICT (team_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, status = EXCLUDED.status, ended_at = EXCLUDED.ended_at`, m)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert team member").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *teamRepository) GetMember(ctx context.Context, teamID, userID string) (*team.Member, error) {
	q := r.db.GetQuerier(ctx)

	var m team.Member
	err := q.GetContext(ctx, &m, `
		SELECT id, team_id, user_id, role, status, started_at, ended_at
		FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("member not found").
				WithHintf("User %s is not a member of team %s", userID, teamID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get team member").
			Mark(ierr.ErrDatabase)
	}
	return &m, nil
}

func (r *teamRepository) SoftRemoveMember(ctx context.Context, teamID, userID string) (*team.Member, error) {
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		UPDATE team_members SET status = $1, ended_at = $2
		WHERE team_id = $3 AND user_id = $4 AND status != $1`,
		types.MemberStatusRemoved, r.clock.Now(), teamID, userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to remove team member").
			Mark(ierr.ErrDatabase)
	}
	return r.GetMember(ctx, teamID, userID)
}

func (r *teamRepository) GetWalletConfig(ctx context.Context, appID, teamID string) (*team.WalletConfig, error) {
	q := r.db.GetQuerier(ctx)

	var cfg team.WalletConfig
	err := q.GetContext(ctx, &cfg, `
		SELECT app_id, team_id, auto_topup_enabled, threshold_minor, topup_amount_minor
		FROM wallet_configs WHERE app_id = $1 AND team_id = $2`, appID, teamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("wallet config not found").
				WithHintf("No wallet config for team %s", teamID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get wallet config").
			Mark(ierr.ErrDatabase)
	}
	return &cfg, nil
}

func (r *teamRepository) UpsertWalletConfig(ctx context.Context, cfg *team.WalletConfig) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO wallet_configs (app_id, team_id, auto_topup_enabled, threshold_minor, topup_amount_minor)
		VALUES (:app_id, :team_id, :auto_topup_enabled, :threshold_minor, :topup_amount_minor)
		ON CONFLICT (app_id, team_id) DO UPDATE
		SET auto_topup_enabled = EXCLUDED.auto_topup_enabled,
		    threshold_minor = EXCLUDED.threshold_minor,
		    topup_amount_minor = EXCLUDED.topup_amount_minor`, cfg)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert wallet config").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
