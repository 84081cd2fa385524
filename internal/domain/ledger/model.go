package ledger

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Account is one ledger account for a bill-to. Accounts are created
// lazily on first post and are unique on (app_id, bill_to_id, type).
type Account struct {
	ID        string                  `db:"id" json:"id"`
	AppID     string                  `db:"app_id" json:"app_id"`
	BillToID  string                  `db:"bill_to_id" json:"bill_to_id"`
	Type      types.LedgerAccountType `db:"type" json:"type"`
	CreatedAt time.Time               `db:"created_at" json:"created_at"`
}

func (a *Account) TableName() string {
	return "ledger_accounts"
}

// Entry is one append-only ledger posting. The globally unique
// idempotency key is what makes every financial write retry-safe.
type Entry struct {
	ID              string                    `db:"id" json:"id"`
	AppID           string                    `db:"app_id" json:"app_id"`
	BillToID        string                    `db:"bill_to_id" json:"bill_to_id"`
	LedgerAccountID string                    `db:"ledger_account_id" json:"ledger_account_id"`
	Type            types.LedgerEntryType     `db:"type" json:"type"`
	AmountMinor     int64                     `db:"amount_minor" json:"amount_minor"`
	Currency        string                    `db:"currency" json:"currency"`
	ReferenceType   types.LedgerReferenceType `db:"reference_type" json:"reference_type"`
	ReferenceID     *string                   `db:"reference_id" json:"reference_id,omitempty"`
	IdempotencyKey  string                    `db:"idempotency_key" json:"idempotency_key"`
	Metadata        types.Metadata            `db:"metadata" json:"metadata"`
	Timestamp       time.Time                 `db:"timestamp" json:"timestamp"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
}

func (e *Entry) TableName() string {
	return "ledger_entries"
}

func (e *Entry) Validate() error {
	if e.AppID == "" {
		return ierr.NewError("app_id is required").
			WithHint("App ID is required").
			Mark(ierr.ErrValidation)
	}
	if e.BillToID == "" {
		return ierr.NewError("bill_to_id is required").
			WithHint("bill_to_id is required").
			Mark(ierr.ErrValidation)
	}
	if e.IdempotencyKey == "" {
		return ierr.NewError("idempotency_key is required").
			WithHint("Ledger entries require an idempotency key").
			Mark(ierr.ErrValidation)
	}
	if e.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := e.Type.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if err := e.ReferenceType.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}
