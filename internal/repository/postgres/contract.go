package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/contract"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type contractRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewContractRepository(db *pg.DB, logger *logger.Logger) contract.Repository {
	return &contractRepository{db: db, logger: logger}
}

const selectContract = `
	SELECT id, bill_to_id, bundle_id, currency, billing_period, terms_days,
	       pricing_mode, starts_at, ends_at, status, base_fee_minor, min_commit_minor,
	       created_at, updated_at
	FROM contracts`

const insertContract = `
	INSERT INTO contracts (id, bill_to_id, bundle_id, currency, billing_period, terms_days,
	                       pricing_mode, starts_at, ends_at, status, base_fee_minor,
	                       min_commit_minor, created_at, updated_at)
	VALUES (:id, :bill_to_id, :bundle_id, :currency, :billing_period, :terms_days,
	        :pricing_mode, :starts_at, :ends_at, :status, :base_fee_minor,
	        :min_commit_minor, :created_at, :updated_at)`

func (r *contractRepository) Create(ctx context.Context, c *contract.Contract) error {
	r.logger.Debugw("creating contract", "contract_id", c.ID, "bill_to_id", c.BillToID, "status", c.Status)

	if c.Status != types.ContractStatusActive {
		q := r.db.GetQuerier(ctx)
		if _, err := q.NamedExecContext(ctx, insertContract, c); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create contract").
				Mark(ierr.ErrDatabase)
		}
		return nil
	}

	// Creating directly in ACTIVE must hold the single-active invariant,
	// so re-scan inside the same transaction.
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if err := r.ensureNoActive(ctx, c.BillToID, c.ID); err != nil {
			return err
		}
		q := r.db.GetQuerier(ctx)
		if _, err := q.NamedExecContext(ctx, insertContract, c); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create contract").
				Mark(ierr.ErrDatabase)
		}
		return nil
	})
}

func (r *contractRepository) GetByID(ctx context.Context, id string) (*contract.Contract, error) {
	q := r.db.GetQuerier(ctx)

	var c contract.Contract
	err := q.GetContext(ctx, &c, selectContract+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("contract not found").
				WithHintf("Contract with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get contract").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *contractRepository) Update(ctx context.Context, c *contract.Contract) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if c.Status == types.ContractStatusActive {
			if err := r.ensureNoActive(ctx, c.BillToID, c.ID); err != nil {
				return err
			}
		}

		q := r.db.GetQuerier(ctx)
		_, err := q.NamedExecContext(ctx, `
			UPDATE contracts
			SET currency = :currency, billing_period = :billing_period, terms_days = :terms_days,
			    pricing_mode = :pricing_mode, starts_at = :starts_at, ends_at = :ends_at,
			    status = :status, base_fee_minor = :base_fee_minor,
			    min_commit_minor = :min_commit_minor, updated_at = :updated_at
			WHERE id = :id`, c)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to update contract").
				Mark(ierr.ErrDatabase)
		}
		return nil
	})
}

// ensureNoActive rejects the write when another ACTIVE contract exists
// for the same bill-to.
func (r *contractRepository) ensureNoActive(ctx context.Context, billToID, excludeID string) error {
	q := r.db.GetQuerier(ctx)

	var existing string
	err := q.GetContext(ctx, &existing, `
		SELECT id FROM contracts
		WHERE bill_to_id = $1 AND status = $2 AND id != $3
		LIMIT 1`, billToID, types.ContractStatusActive, excludeID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to check active contracts").
			Mark(ierr.ErrDatabase)
	}
	return ierr.NewError("active contract already exists").
		WithHintf("Billing entity %s already has an active contract", billToID).
		WithReportableDetails(map[string]any{
			"bill_to_id":           billToID,
			"existing_contract_id": existing,
		}).
		Mark(ierr.ErrAlreadyExists)
}

func (r *contractRepository) GetActiveByBillTo(ctx context.Context, billToID string) (*contract.Contract, error) {
	q := r.db.GetQuerier(ctx)

	var c contract.Contract
	err := q.GetContext(ctx, &c, selectContract+`
		WHERE bill_to_id = $1 AND status = $2`, billToID, types.ContractStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("contract not found").
				WithHintf("Billing entity %s has no active contract", billToID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active contract").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *contractRepository) ListActive(ctx context.Context) ([]*contract.Contract, error) {
	q := r.db.GetQuerier(ctx)

	contracts := []*contract.Contract{}
	err := q.SelectContext(ctx, &contracts, selectContract+`
		WHERE status = $1 ORDER BY created_at ASC`, types.ContractStatusActive)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list active contracts").
			Mark(ierr.ErrDatabase)
	}
	return contracts, nil
}

func (r *contractRepository) ReplaceOverrides(ctx context.Context, contractID string, overrides []*contract.Override) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		if _, err := q.ExecContext(ctx, `
			DELETE FROM contract_overrides WHERE contract_id = $1`, contractID); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to clear contract overrides").
				Mark(ierr.ErrDatabase)
		}

		for _, o := range overrides {
			if _, err := q.NamedExecContext(ctx, `
				INSERT INTO contract_overrides (id, contract_id, app_id, meter_key,
				                                limit_type, included_amount, enforcement, overage_billing)
				VALUES (:id, :contract_id, :app_id, :meter_key,
				        :limit_type, :included_amount, :enforcement, :overage_billing)`, o); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to insert contract override").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *contractRepository) ListOverrides(ctx context.Context, contractID string) ([]*contract.Override, error) {
	q := r.db.GetQuerier(ctx)

	overrides := []*contract.Override{}
	err := q.SelectContext(ctx, &overrides, `
		SELECT id, contract_id, app_id, meter_key, limit_type, included_amount, enforcement, overage_billing
		FROM contract_overrides WHERE contract_id = $1
		ORDER BY app_id ASC, meter_key ASC`, contractID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list contract overrides").
			Mark(ierr.ErrDatabase)
	}
	return overrides, nil
}
