package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/meterline/meterline/internal/domain/lineitem"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type lineItemRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewLineItemRepository(db *pg.DB, logger *logger.Logger) lineitem.Repository {
	return &lineItemRepository{db: db, logger: logger}
}

const selectLineItem = `
	SELECT id, app_id, bill_to_id, team_id, user_id, usage_event_id, timestamp,
	       price_book_id, price_rule_id, amount_minor, currency, description,
	       inputs_snapshot, wallet_debited_at, created_at
	FROM billable_line_items`

const insertLineItem = `
	INSERT INTO billable_line_items (id, app_id, bill_to_id, team_id, user_id, usage_event_id,
	                                 timestamp, price_book_id, price_rule_id, amount_minor,
	                                 currency, description, inputs_snapshot, wallet_debited_at,
	                                 created_at)
	VALUES (:id, :app_id, :bill_to_id, :team_id, :user_id, :usage_event_id,
	        :timestamp, :price_book_id, :price_rule_id, :amount_minor,
	        :currency, :description, :inputs_snapshot, :wallet_debited_at,
	        :created_at)`

func (r *lineItemRepository) Create(ctx context.Context, item *lineitem.BillableLineItem) error {
	q := r.db.GetQuerier(ctx)

	if _, err := q.NamedExecContext(ctx, insertLineItem, item); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create line item").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *lineItemRepository) CreateBulk(ctx context.Context, items []*lineitem.BillableLineItem) error {
	if len(items) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		for _, item := range items {
			if _, err := q.NamedExecContext(ctx, insertLineItem, item); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create line item").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *lineItemRepository) GetByID(ctx context.Context, id string) (*lineitem.BillableLineItem, error) {
	q := r.db.GetQuerier(ctx)

	var item lineitem.BillableLineItem
	err := q.GetContext(ctx, &item, selectLineItem+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("line item not found").
				WithHintf("Line item with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get line item").
			Mark(ierr.ErrDatabase)
	}
	return &item, nil
}

func (r *lineItemRepository) ExistsForEvent(ctx context.Context, usageEventID string) (bool, error) {
	q := r.db.GetQuerier(ctx)

	var exists bool
	err := q.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM billable_line_items WHERE usage_event_id = $1)`, usageEventID)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check line items for event").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func (r *lineItemRepository) MarkWalletDebited(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q := r.db.GetQuerier(ctx)

	_, err := q.ExecContext(ctx, `
		UPDATE billable_line_items SET wallet_debited_at = $1
		WHERE id = ANY($2)`, at, pq.Array(ids))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark line items debited").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *lineItemRepository) ListUndebited(ctx context.Context, limit int) ([]*lineitem.BillableLineItem, error) {
	q := r.db.GetQuerier(ctx)

	items := []*lineitem.BillableLineItem{}
	err := q.SelectContext(ctx, &items, selectLineItem+`
		WHERE wallet_debited_at IS NULL
		  AND price_book_id IN (SELECT id FROM price_books WHERE kind = $1)
		ORDER BY created_at ASC LIMIT $2`, types.PriceBookKindCustomer, limit)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list undebited line items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *lineItemRepository) SumByApp(ctx context.Context, billToID string, from, to time.Time) ([]*lineitem.UsageTotal, error) {
	q := r.db.GetQuerier(ctx)

	totals := []*lineitem.UsageTotal{}
	err := q.SelectContext(ctx, &totals, `
		SELECT li.app_id, COALESCE(SUM(li.amount_minor), 0) AS amount_minor, COUNT(*) AS count
		FROM billable_line_items li
		JOIN price_books pb ON pb.id = li.price_book_id
		WHERE li.bill_to_id = $1 AND li.timestamp >= $2 AND li.timestamp < $3 AND pb.kind = $4
		GROUP BY li.app_id
		ORDER BY li.app_id ASC`, billToID, from, to, types.PriceBookKindCustomer)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to aggregate line items").
			Mark(ierr.ErrDatabase)
	}
	return totals, nil
}

func (r *lineItemRepository) ListByBillTo(ctx context.Context, billToID string, from, to time.Time) ([]*lineitem.BillableLineItem, error) {
	q := r.db.GetQuerier(ctx)

	items := []*lineitem.BillableLineItem{}
	err := q.SelectContext(ctx, &items, selectLineItem+`
		WHERE bill_to_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC`, billToID, from, to)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list line items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}
