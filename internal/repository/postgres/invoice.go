package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/meterline/meterline/internal/domain/invoice"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
)

type invoiceRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *pg.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

const selectInvoice = `
	SELECT id, contract_id, bill_to_id, currency, period_start, period_end, status,
	       subtotal_minor, tax_minor, total_minor, issued_at, due_at, created_at, updated_at
	FROM invoices`

func (r *invoiceRepository) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice, items []*invoice.LineItem) error {
	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"contract_id", inv.ContractID,
		"line_items", len(items),
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		_, err := q.NamedExecContext(ctx, `
			INSERT INTO invoices (id, contract_id, bill_to_id, currency, period_start, period_end,
			                      status, subtotal_minor, tax_minor, total_minor, issued_at, due_at,
			                      created_at, updated_at)
			VALUES (:id, :contract_id, :bill_to_id, :currency, :period_start, :period_end,
			        :status, :subtotal_minor, :tax_minor, :total_minor, :issued_at, :due_at,
			        :created_at, :updated_at)`, inv)
		if err != nil {
			if pg.IsUniqueViolation(err) {
				return ierr.WithError(err).
					WithHint("An invoice for this contract and period already exists").
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHint("Failed to create invoice").
				Mark(ierr.ErrDatabase)
		}

		for _, item := range items {
			if _, err := q.NamedExecContext(ctx, `
				INSERT INTO invoice_line_items (id, invoice_id, app_id, type, description, quantity,
				                                unit_price_minor, amount_minor, usage_summary, created_at)
				VALUES (:id, :invoice_id, :app_id, :type, :description, :quantity,
				        :unit_price_minor, :amount_minor, :usage_summary, :created_at)`, item); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create invoice line item").
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)

	var inv invoice.Invoice
	err := q.GetContext(ctx, &inv, selectInvoice+` WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHintf("Invoice with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByPeriod(ctx context.Context, contractID string, periodStart, periodEnd time.Time) (*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)

	var inv invoice.Invoice
	err := q.GetContext(ctx, &inv, selectInvoice+`
		WHERE contract_id = $1 AND period_start = $2 AND period_end = $3`,
		contractID, periodStart, periodEnd)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHintf("No invoice for contract %s in this period", contractID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		UPDATE invoices
		SET status = :status, subtotal_minor = :subtotal_minor, tax_minor = :tax_minor,
		    total_minor = :total_minor, issued_at = :issued_at, due_at = :due_at,
		    updated_at = :updated_at
		WHERE id = :id`, inv)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update invoice").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *invoiceRepository) ListByBillTo(ctx context.Context, billToID string) ([]*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)

	invoices := []*invoice.Invoice{}
	err := q.SelectContext(ctx, &invoices, selectInvoice+`
		WHERE bill_to_id = $1 ORDER BY period_start DESC`, billToID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}
	return invoices, nil
}

func (r *invoiceRepository) ListLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error) {
	q := r.db.GetQuerier(ctx)

	items := []*invoice.LineItem{}
	err := q.SelectContext(ctx, &items, `
		SELECT id, invoice_id, app_id, type, description, quantity, unit_price_minor,
		       amount_minor, usage_summary, created_at
		FROM invoice_line_items WHERE invoice_id = $1
		ORDER BY created_at ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoice line items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}
