package ledger

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/types"
)

// Repository defines persistence for ledger accounts and entries.
// Entries are append-only; there is no update or delete.
type Repository interface {
	// GetOrCreateAccount resolves the account for (app, bill-to, type),
	// creating it on first use. Concurrent creation is resolved by the
	// unique constraint and a re-read.
	GetOrCreateAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*Account, error)
	GetAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*Account, error)

	// CreateEntry appends an entry. A duplicate idempotency key surfaces
	// as ErrDuplicateLedgerEntry.
	CreateEntry(ctx context.Context, e *Entry) error
	GetEntryByIdempotencyKey(ctx context.Context, key string) (*Entry, error)
	ListEntries(ctx context.Context, accountID string, from, to time.Time) ([]*Entry, error)
	ListEntriesByReference(ctx context.Context, referenceType types.LedgerReferenceType, referenceID string) ([]*Entry, error)
	// AccountBalance sums amount_minor over the account's entries with
	// timestamp at or before asOf; a nil asOf means all entries.
	AccountBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error)
}
