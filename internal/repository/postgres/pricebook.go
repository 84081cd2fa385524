package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/meterline/meterline/internal/domain/pricebook"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type priceBookRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewPriceBookRepository(db *pg.DB, logger *logger.Logger) pricebook.Repository {
	return &priceBookRepository{db: db, logger: logger}
}

func (r *priceBookRepository) CreateBook(ctx context.Context, b *pricebook.PriceBook) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO price_books (id, app_id, kind, currency, effective_from, created_at, updated_at)
		VALUES (:id, :app_id, :kind, :currency, :effective_from, :created_at, :updated_at)`, b)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create price book").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *priceBookRepository) GetBook(ctx context.Context, id string) (*pricebook.PriceBook, error) {
	q := r.db.GetQuerier(ctx)

	var b pricebook.PriceBook
	err := q.GetContext(ctx, &b, `
		SELECT id, app_id, kind, currency, effective_from, created_at, updated_at
		FROM price_books WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("price book not found").
				WithHintf("Price book with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get price book").
			Mark(ierr.ErrDatabase)
	}
	return &b, nil
}

func (r *priceBookRepository) GetLatestBook(ctx context.Context, appID string, kind types.PriceBookKind, asOf time.Time) (*pricebook.PriceBook, error) {
	q := r.db.GetQuerier(ctx)

	var b pricebook.PriceBook
	err := q.GetContext(ctx, &b, `
		SELECT id, app_id, kind, currency, effective_from, created_at, updated_at
		FROM price_books
		WHERE app_id = $1 AND kind = $2 AND effective_from <= $3
		ORDER BY effective_from DESC LIMIT 1`, appID, kind, asOf)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("price book not found").
				WithHintf("No %s price book effective for app %s", kind, appID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get price book").
			Mark(ierr.ErrDatabase)
	}
	return &b, nil
}

func (r *priceBookRepository) ListBooks(ctx context.Context, appID string) ([]*pricebook.PriceBook, error) {
	q := r.db.GetQuerier(ctx)

	books := []*pricebook.PriceBook{}
	err := q.SelectContext(ctx, &books, `
		SELECT id, app_id, kind, currency, effective_from, created_at, updated_at
		FROM price_books WHERE app_id = $1
		ORDER BY effective_from DESC`, appID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list price books").
			Mark(ierr.ErrDatabase)
	}
	return books, nil
}

func (r *priceBookRepository) CreateRule(ctx context.Context, rule *pricebook.Rule) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO price_rules (id, price_book_id, priority, match, rule, created_at)
		VALUES (:id, :price_book_id, :priority, :match, :rule, :created_at)`, rule)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create price rule").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *priceBookRepository) ListRules(ctx context.Context, priceBookID string) ([]*pricebook.Rule, error) {
	q := r.db.GetQuerier(ctx)

	rules := []*pricebook.Rule{}
	err := q.SelectContext(ctx, &rules, `
		SELECT id, price_book_id, priority, match, rule, created_at
		FROM price_rules WHERE price_book_id = $1
		ORDER BY priority DESC, created_at ASC`, priceBookID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list price rules").
			Mark(ierr.ErrDatabase)
	}
	return rules, nil
}
