package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// CreateEntryRequest describes one ledger posting. AmountMinor is
// signed; the caller owns the sign convention (credits positive on
// WALLET, charges negative).
type CreateEntryRequest struct {
	AppID          string
	BillToID       string
	AccountType    types.LedgerAccountType
	Type           types.LedgerEntryType
	AmountMinor    int64
	Currency       string
	ReferenceType  types.LedgerReferenceType
	ReferenceID    string
	IdempotencyKey string
	Metadata       types.Metadata
}

// LedgerService is the single write path for money movements. Entries
// are append-only and deduplicated on their idempotency key.
type LedgerService interface {
	GetOrCreateAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error)
	// CreateEntry posts one entry. A replayed idempotency key fails with
	// ErrDuplicateLedgerEntry; the caller decides whether to swallow it.
	CreateEntry(ctx context.Context, req CreateEntryRequest) (*ledger.Entry, error)
	GetBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error)
	GetBalanceByType(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (int64, error)
	ListEntriesByReference(ctx context.Context, referenceType types.LedgerReferenceType, referenceID string) ([]*ledger.Entry, error)
}

type ledgerService struct {
	ServiceParams
}

func NewLedgerService(params ServiceParams) LedgerService {
	return &ledgerService{ServiceParams: params}
}

func (s *ledgerService) GetOrCreateAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error) {
	if err := accountType.Validate(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return s.LedgerRepo.GetOrCreateAccount(ctx, appID, billToID, accountType)
}

func (s *ledgerService) CreateEntry(ctx context.Context, req CreateEntryRequest) (*ledger.Entry, error) {
	account, err := s.GetOrCreateAccount(ctx, req.AppID, req.BillToID, req.AccountType)
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ENTRY),
		AppID:           req.AppID,
		BillToID:        req.BillToID,
		LedgerAccountID: account.ID,
		Type:            req.Type,
		AmountMinor:     req.AmountMinor,
		Currency:        req.Currency,
		ReferenceType:   req.ReferenceType,
		IdempotencyKey:  req.IdempotencyKey,
		Metadata:        req.Metadata,
		Timestamp:       s.Clock.Now(),
		CreatedAt:       s.Clock.Now(),
	}
	if req.ReferenceID != "" {
		entry.ReferenceID = &req.ReferenceID
	}
	if entry.Metadata == nil {
		entry.Metadata = types.Metadata{}
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := s.LedgerRepo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.Logger.Infow("ledger entry posted",
		"entry_id", entry.ID,
		"account_id", account.ID,
		"type", entry.Type,
		"amount_minor", entry.AmountMinor,
		"idempotency_key", entry.IdempotencyKey,
	)
	return entry, nil
}

func (s *ledgerService) GetBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error) {
	return s.LedgerRepo.AccountBalance(ctx, accountID, asOf)
}

func (s *ledgerService) GetBalanceByType(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (int64, error) {
	account, err := s.LedgerRepo.GetAccount(ctx, appID, billToID, accountType)
	if err != nil {
		if ierr.IsNotFound(err) {
			// No account means no postings yet.
			return 0, nil
		}
		return 0, err
	}
	return s.LedgerRepo.AccountBalance(ctx, account.ID, nil)
}

func (s *ledgerService) ListEntriesByReference(ctx context.Context, referenceType types.LedgerReferenceType, referenceID string) ([]*ledger.Entry, error) {
	return s.LedgerRepo.ListEntriesByReference(ctx, referenceType, referenceID)
}
