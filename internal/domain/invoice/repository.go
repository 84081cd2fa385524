package invoice

import (
	"context"
	"time"
)

// Repository defines persistence for invoices and their line items
type Repository interface {
	// CreateWithLineItems inserts the invoice and all its lines in one
	// transaction. A duplicate (contract_id, period_start, period_end)
	// surfaces as an already-exists error.
	CreateWithLineItems(ctx context.Context, inv *Invoice, items []*LineItem) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByPeriod(ctx context.Context, contractID string, periodStart, periodEnd time.Time) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	ListByBillTo(ctx context.Context, billToID string) ([]*Invoice, error)
	ListLineItems(ctx context.Context, invoiceID string) ([]*LineItem, error)
}
