package lineitem

import (
	"context"
	"time"
)

// Repository defines persistence for billable line items
type Repository interface {
	Create(ctx context.Context, item *BillableLineItem) error
	// CreateBulk inserts all items in one transaction.
	CreateBulk(ctx context.Context, items []*BillableLineItem) error
	GetByID(ctx context.Context, id string) (*BillableLineItem, error)
	// ExistsForEvent reports whether any line item was already produced
	// for the given usage event. The pricing worker's recovery guard.
	ExistsForEvent(ctx context.Context, usageEventID string) (bool, error)
	MarkWalletDebited(ctx context.Context, ids []string, at time.Time) error
	// ListUndebited returns CUSTOMER-book line items with
	// wallet_debited_at unset, for the batch debit sweep.
	ListUndebited(ctx context.Context, limit int) ([]*BillableLineItem, error)
	// SumByApp aggregates CUSTOMER-book amounts per app for a bill-to
	// over [from, to).
	SumByApp(ctx context.Context, billToID string, from, to time.Time) ([]*UsageTotal, error)
	ListByBillTo(ctx context.Context, billToID string, from, to time.Time) ([]*BillableLineItem, error)
}
