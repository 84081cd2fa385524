package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type ledgerRepository struct {
	db     *pg.DB
	logger *logger.Logger
	clock  types.Clock
}

func NewLedgerRepository(db *pg.DB, logger *logger.Logger, clock types.Clock) ledger.Repository {
	return &ledgerRepository{db: db, logger: logger, clock: clock}
}

const selectEntry = `
	SELECT id, app_id, bill_to_id, ledger_account_id, type, amount_minor, currency,
	       reference_type, reference_id, idempotency_key, metadata, timestamp, created_at
	FROM ledger_entries`

func (r *ledgerRepository) GetOrCreateAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error) {
	acc, err := r.GetAccount(ctx, appID, billToID, accountType)
	if err == nil {
		return acc, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	q := r.db.GetQuerier(ctx)
	acc = &ledger.Account{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ACCOUNT),
		AppID:     appID,
		BillToID:  billToID,
		Type:      accountType,
		CreatedAt: r.clock.Now(),
	}
	_, err = q.NamedExecContext(ctx, `
		INSERT INTO ledger_accounts (id, app_id, bill_to_id, type, created_at)
		VALUES (:id, :app_id, :bill_to_id, :type, :created_at)`, acc)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			// Concurrent creation; the other writer's row wins.
			return r.GetAccount(ctx, appID, billToID, accountType)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to create ledger account").
			Mark(ierr.ErrDatabase)
	}
	return acc, nil
}

func (r *ledgerRepository) GetAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error) {
	q := r.db.GetQuerier(ctx)

	var acc ledger.Account
	err := q.GetContext(ctx, &acc, `
		SELECT id, app_id, bill_to_id, type, created_at
		FROM ledger_accounts WHERE app_id = $1 AND bill_to_id = $2 AND type = $3`,
		appID, billToID, accountType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("ledger account not found").
				WithHintf("No %s account for billing entity %s", accountType, billToID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get ledger account").
			Mark(ierr.ErrDatabase)
	}
	return &acc, nil
}

func (r *ledgerRepository) CreateEntry(ctx context.Context, e *ledger.Entry) error {
	r.logger.Debugw("posting ledger entry",
		"entry_id", e.ID,
		"type", e.Type,
		"amount_minor", e.AmountMinor,
		"idempotency_key", e.IdempotencyKey,
	)

	q := r.db.GetQuerier(ctx)
	_, err := q.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (id, app_id, bill_to_id, ledger_account_id, type, amount_minor,
		                            currency, reference_type, reference_id, idempotency_key,
		                            metadata, timestamp, created_at)
		VALUES (:id, :app_id, :bill_to_id, :ledger_account_id, :type, :amount_minor,
		        :currency, :reference_type, :reference_id, :idempotency_key,
		        :metadata, :timestamp, :created_at)`, e)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A ledger entry with idempotency key %s already exists", e.IdempotencyKey).
				Mark(ierr.ErrDuplicateLedgerEntry)
		}
		return ierr.WithError(err).
			WithHint("Failed to create ledger entry").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *ledgerRepository) GetEntryByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	q := r.db.GetQuerier(ctx)

	var e ledger.Entry
	err := q.GetContext(ctx, &e, selectEntry+` WHERE idempotency_key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("ledger entry not found").
				WithHintf("No ledger entry with idempotency key %s", key).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get ledger entry").
			Mark(ierr.ErrDatabase)
	}
	return &e, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, accountID string, from, to time.Time) ([]*ledger.Entry, error) {
	q := r.db.GetQuerier(ctx)

	entries := []*ledger.Entry{}
	err := q.SelectContext(ctx, &entries, selectEntry+`
		WHERE ledger_account_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC`, accountID, from, to)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list ledger entries").
			Mark(ierr.ErrDatabase)
	}
	return entries, nil
}

func (r *ledgerRepository) ListEntriesByReference(ctx context.Context, referenceType types.LedgerReferenceType, referenceID string) ([]*ledger.Entry, error) {
	q := r.db.GetQuerier(ctx)

	entries := []*ledger.Entry{}
	err := q.SelectContext(ctx, &entries, selectEntry+`
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at ASC`, referenceType, referenceID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list ledger entries").
			Mark(ierr.ErrDatabase)
	}
	return entries, nil
}

func (r *ledgerRepository) AccountBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error) {
	q := r.db.GetQuerier(ctx)

	var balance int64
	var err error
	if asOf != nil {
		err = q.GetContext(ctx, &balance, `
			SELECT COALESCE(SUM(amount_minor), 0)
			FROM ledger_entries WHERE ledger_account_id = $1 AND timestamp <= $2`, accountID, *asOf)
	} else {
		err = q.GetContext(ctx, &balance, `
			SELECT COALESCE(SUM(amount_minor), 0)
			FROM ledger_entries WHERE ledger_account_id = $1`, accountID)
	}
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to compute account balance").
			Mark(ierr.ErrDatabase)
	}
	return balance, nil
}
