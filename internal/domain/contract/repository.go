package contract

import "context"

// Repository defines persistence for contracts and their overrides
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, id string) (*Contract, error)
	Update(ctx context.Context, c *Contract) error
	// GetActiveByBillTo returns the single ACTIVE contract for a
	// bill-to, or a not-found error. The activation path re-scans with
	// this inside its transaction.
	GetActiveByBillTo(ctx context.Context, billToID string) (*Contract, error)
	ListActive(ctx context.Context) ([]*Contract, error)

	// ReplaceOverrides deletes then inserts within one transaction; an
	// empty list clears all overrides.
	ReplaceOverrides(ctx context.Context, contractID string, overrides []*Override) error
	ListOverrides(ctx context.Context, contractID string) ([]*Override, error)
}
