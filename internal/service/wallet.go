package service

import (
	"context"
	"fmt"

	"github.com/meterline/meterline/internal/domain/lineitem"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/types"
)

// DebitOutcome reports what an immediate debit actually did
type DebitOutcome string

const (
	DebitApplied   DebitOutcome = "applied"
	DebitDuplicate DebitOutcome = "duplicate"
	DebitSkipped   DebitOutcome = "skipped"
)

// AutoTopUpTrigger re-checks a team's wallet balance after a debit and
// starts an off-session top-up when it dropped below the configured
// threshold. The gateway driver implements it; a nil trigger disables
// the check.
type AutoTopUpTrigger interface {
	CheckAndTriggerAutoTopUp(ctx context.Context, appID, teamID string) error
}

// WalletService debits CUSTOMER line items against team wallets. Every
// debit is keyed on the line item (or the batch hash), so duplicate
// delivery from the worker or the sweep collapses to a no-op.
type WalletService interface {
	// DebitImmediate debits one line item right after pricing. It is a
	// no-op for non-wallet teams, COGS items, and already-debited items.
	DebitImmediate(ctx context.Context, lineItemID string) (DebitOutcome, error)
	// DebitBatch sweeps undebited CUSTOMER line items and posts one
	// aggregated charge per (app, bill-to).
	DebitBatch(ctx context.Context) (*BatchDebitResult, error)
	// HandleTopUpSuccess credits a wallet for a confirmed gateway
	// payment, keyed on the gateway event id.
	HandleTopUpSuccess(ctx context.Context, req TopUpRequest) error
	// GetBalance returns the current wallet balance for a team's bill-to
	GetBalance(ctx context.Context, appID, billToID string) (int64, error)
}

// TopUpRequest carries the gateway-confirmed payment details
type TopUpRequest struct {
	EventID         string
	AppID           string
	TeamID          string
	AmountMinor     int64
	Currency        string
	PaymentIntentID string
	Trigger         string
}

// BatchDebitResult counts the sweep's work
type BatchDebitResult struct {
	Batches    int `json:"batches"`
	LineItems  int `json:"line_items"`
	Duplicates int `json:"duplicates"`
}

type walletService struct {
	ServiceParams
	ledger  LedgerService
	topUp   AutoTopUpTrigger
	sweepSz int
}

func NewWalletService(params ServiceParams, ledger LedgerService, topUp AutoTopUpTrigger) WalletService {
	return &walletService{
		ServiceParams: params,
		ledger:        ledger,
		topUp:         topUp,
		sweepSz:       1000,
	}
}

func (s *walletService) DebitImmediate(ctx context.Context, lineItemID string) (DebitOutcome, error) {
	item, err := s.LineItemRepo.GetByID(ctx, lineItemID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return DebitSkipped, nil
		}
		return DebitSkipped, err
	}
	if item.WalletDebitedAt != nil {
		return DebitSkipped, nil
	}

	t, err := s.TeamRepo.GetByID(ctx, item.TeamID)
	if err != nil {
		return DebitSkipped, err
	}
	if t.BillingMode != types.BillingModeWallet {
		return DebitSkipped, nil
	}

	book, err := s.PriceBookRepo.GetBook(ctx, item.PriceBookID)
	if err != nil {
		return DebitSkipped, err
	}
	if book.Kind != types.PriceBookKindCustomer {
		return DebitSkipped, nil
	}

	req := CreateEntryRequest{
		AppID:          item.AppID,
		BillToID:       item.BillToID,
		AccountType:    types.LedgerAccountWallet,
		Type:           types.LedgerEntryUsageCharge,
		AmountMinor:    -item.AmountMinor,
		Currency:       item.Currency,
		ReferenceType:  types.LedgerReferenceUsageEvent,
		IdempotencyKey: idempotency.WalletDebitKey(item.ID),
		Metadata: types.Metadata{
			"mode":         "immediate",
			"line_item_id": item.ID,
			"description":  item.Description,
		},
	}
	if item.UsageEventID != nil {
		req.ReferenceID = *item.UsageEventID
	}

	outcome := DebitApplied
	if _, err := s.ledger.CreateEntry(ctx, req); err != nil {
		if !ierr.IsDuplicateLedgerEntry(err) {
			return DebitSkipped, err
		}
		outcome = DebitDuplicate
	}

	if err := s.LineItemRepo.MarkWalletDebited(ctx, []string{item.ID}, s.Clock.Now()); err != nil {
		return outcome, err
	}

	s.checkAutoTopUp(ctx, item.AppID, item.TeamID)
	return outcome, nil
}

func (s *walletService) DebitBatch(ctx context.Context) (*BatchDebitResult, error) {
	items, err := s.LineItemRepo.ListUndebited(ctx, s.sweepSz)
	if err != nil {
		return nil, err
	}

	result := &BatchDebitResult{}
	groups := map[string][]*lineitem.BillableLineItem{}
	for _, item := range items {
		t, err := s.TeamRepo.GetByID(ctx, item.TeamID)
		if err != nil {
			return result, err
		}
		if t.BillingMode != types.BillingModeWallet {
			continue
		}
		key := item.AppID + ":" + item.BillToID
		groups[key] = append(groups[key], item)
	}

	for _, group := range groups {
		first := group[0]

		ids := make([]string, 0, len(group))
		var total int64
		for _, item := range group {
			ids = append(ids, item.ID)
			total += item.AmountMinor
		}

		req := CreateEntryRequest{
			AppID:          first.AppID,
			BillToID:       first.BillToID,
			AccountType:    types.LedgerAccountWallet,
			Type:           types.LedgerEntryUsageCharge,
			AmountMinor:    -total,
			Currency:       first.Currency,
			ReferenceType:  types.LedgerReferenceLineItem,
			ReferenceID:    first.ID,
			IdempotencyKey: idempotency.WalletBatchKey(first.AppID, first.BillToID, ids),
			Metadata: types.Metadata{
				"mode":       "batch",
				"line_items": fmt.Sprintf("%d", len(ids)),
			},
		}
		if _, err := s.ledger.CreateEntry(ctx, req); err != nil {
			if !ierr.IsDuplicateLedgerEntry(err) {
				return result, err
			}
			result.Duplicates++
		} else {
			result.Batches++
		}

		if err := s.LineItemRepo.MarkWalletDebited(ctx, ids, s.Clock.Now()); err != nil {
			return result, err
		}
		result.LineItems += len(ids)

		s.checkAutoTopUp(ctx, first.AppID, first.TeamID)
	}

	return result, nil
}

func (s *walletService) HandleTopUpSuccess(ctx context.Context, req TopUpRequest) error {
	t, err := s.TeamRepo.GetByID(ctx, req.TeamID)
	if err != nil {
		return err
	}

	metadata := types.Metadata{
		"payment_intent_id": req.PaymentIntentID,
	}
	if req.Trigger != "" {
		metadata["trigger"] = req.Trigger
	}

	_, err = s.ledger.CreateEntry(ctx, CreateEntryRequest{
		AppID:          req.AppID,
		BillToID:       t.BillToID,
		AccountType:    types.LedgerAccountWallet,
		Type:           types.LedgerEntryTopup,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		ReferenceType:  types.LedgerReferencePayment,
		ReferenceID:    req.PaymentIntentID,
		IdempotencyKey: idempotency.TopupKey(req.EventID),
		Metadata:       metadata,
	})
	if err != nil {
		if ierr.IsDuplicateLedgerEntry(err) {
			s.Logger.Infow("top-up already credited",
				"event_id", req.EventID,
				"team_id", req.TeamID,
			)
			return nil
		}
		return err
	}

	s.Logger.Infow("wallet topped up",
		"team_id", req.TeamID,
		"amount_minor", req.AmountMinor,
		"event_id", req.EventID,
	)
	return nil
}

func (s *walletService) GetBalance(ctx context.Context, appID, billToID string) (int64, error) {
	return s.ledger.GetBalanceByType(ctx, appID, billToID, types.LedgerAccountWallet)
}

// checkAutoTopUp is best-effort: top-up failures never fail a debit.
func (s *walletService) checkAutoTopUp(ctx context.Context, appID, teamID string) {
	if s.topUp == nil {
		return
	}
	if err := s.topUp.CheckAndTriggerAutoTopUp(ctx, appID, teamID); err != nil {
		s.Logger.Warnw("auto top-up check failed",
			"app_id", appID,
			"team_id", teamID,
			"error", err,
		)
	}
}
