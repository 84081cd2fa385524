package invoice

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Invoice is one billing-period statement for a contract. Unique on
// (contract_id, period_start, period_end), which is what makes period
// close re-runnable.
type Invoice struct {
	ID            string              `db:"id" json:"id"`
	ContractID    string              `db:"contract_id" json:"contract_id"`
	BillToID      string              `db:"bill_to_id" json:"bill_to_id"`
	Currency      string              `db:"currency" json:"currency"`
	PeriodStart   time.Time           `db:"period_start" json:"period_start"`
	PeriodEnd     time.Time           `db:"period_end" json:"period_end"`
	Status        types.InvoiceStatus `db:"status" json:"status"`
	SubtotalMinor int64               `db:"subtotal_minor" json:"subtotal_minor"`
	TaxMinor      int64               `db:"tax_minor" json:"tax_minor"`
	TotalMinor    int64               `db:"total_minor" json:"total_minor"`
	IssuedAt      *time.Time          `db:"issued_at" json:"issued_at,omitempty"`
	DueAt         *time.Time          `db:"due_at" json:"due_at,omitempty"`
	types.BaseModel
}

func (i *Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) Validate() error {
	if i.ContractID == "" {
		return ierr.NewError("contract_id is required").
			WithHint("Contract ID is required").
			Mark(ierr.ErrValidation)
	}
	if i.BillToID == "" {
		return ierr.NewError("bill_to_id is required").
			WithHint("bill_to_id is required").
			Mark(ierr.ErrValidation)
	}
	if !i.PeriodEnd.After(i.PeriodStart) {
		return ierr.NewError("period_end must be after period_start").
			WithHint("Invalid invoice period").
			Mark(ierr.ErrValidation)
	}
	if err := i.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

// LineItem is one line on an invoice
type LineItem struct {
	ID             string                    `db:"id" json:"id"`
	InvoiceID      string                    `db:"invoice_id" json:"invoice_id"`
	AppID          *string                   `db:"app_id" json:"app_id,omitempty"`
	Type           types.InvoiceLineItemType `db:"type" json:"type"`
	Description    string                    `db:"description" json:"description"`
	Quantity       int64                     `db:"quantity" json:"quantity"`
	UnitPriceMinor int64                     `db:"unit_price_minor" json:"unit_price_minor"`
	AmountMinor    int64                     `db:"amount_minor" json:"amount_minor"`
	UsageSummary   types.Payload             `db:"usage_summary" json:"usage_summary,omitempty"`
	CreatedAt      time.Time                 `db:"created_at" json:"created_at"`
}

func (l *LineItem) TableName() string {
	return "invoice_line_items"
}
