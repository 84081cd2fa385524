package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/types"
)

// CheckoutCompleted carries the fields the dispatcher extracts from a
// completed subscription checkout session.
type CheckoutCompleted struct {
	EventID               string
	AppID                 string
	TeamID                string
	PlanID                string
	GatewaySubscriptionID string
	GatewayStatus         string
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	SeatsQuantity         int64
	AmountTotalMinor      int64
	Currency              string
	PaymentIntentID       string
}

// SubscriptionUpdate carries a subscription lifecycle change
type SubscriptionUpdate struct {
	GatewaySubscriptionID string
	GatewayStatus         string
	CurrentPeriodStart    time.Time
	CurrentPeriodEnd      time.Time
	SeatsQuantity         int64
}

// SubscriptionService mirrors gateway subscription lifecycle events
// onto local records and keeps entitlements fresh.
type SubscriptionService interface {
	// HandleCheckoutCompleted upserts the subscription and posts the
	// charge, keyed on the gateway event id.
	HandleCheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error
	// HandleSubscriptionUpdated applies status and period changes. A
	// subscription we never saw is skipped, not an error.
	HandleSubscriptionUpdated(ctx context.Context, upd SubscriptionUpdate) error
	// HandleSubscriptionDeleted marks the subscription CANCELED.
	HandleSubscriptionDeleted(ctx context.Context, gatewaySubscriptionID string) error
	GetActiveByTeam(ctx context.Context, teamID string) (*subscription.Subscription, error)
}

type subscriptionService struct {
	ServiceParams
	ledger       LedgerService
	entitlements EntitlementService
}

func NewSubscriptionService(params ServiceParams, ledger LedgerService, entitlements EntitlementService) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		ledger:        ledger,
		entitlements:  entitlements,
	}
}

func (s *subscriptionService) HandleCheckoutCompleted(ctx context.Context, evt CheckoutCompleted) error {
	t, err := s.TeamRepo.GetByID(ctx, evt.TeamID)
	if err != nil {
		return err
	}

	sub := &subscription.Subscription{
		ID:                    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		TeamID:                evt.TeamID,
		GatewaySubscriptionID: evt.GatewaySubscriptionID,
		Status:                types.SubscriptionStatusFromGateway(evt.GatewayStatus),
		PlanID:                evt.PlanID,
		CurrentPeriodStart:    evt.CurrentPeriodStart,
		CurrentPeriodEnd:      evt.CurrentPeriodEnd,
		SeatsQuantity:         evt.SeatsQuantity,
		BaseModel:             types.GetDefaultBaseModel(s.Clock.Now()),
	}
	if err := s.SubscriptionRepo.Upsert(ctx, sub); err != nil {
		return err
	}

	if evt.AmountTotalMinor != 0 {
		_, err = s.ledger.CreateEntry(ctx, CreateEntryRequest{
			AppID:          evt.AppID,
			BillToID:       t.BillToID,
			AccountType:    types.LedgerAccountAccountsReceivable,
			Type:           types.LedgerEntrySubscriptionCharge,
			AmountMinor:    evt.AmountTotalMinor,
			Currency:       evt.Currency,
			ReferenceType:  types.LedgerReferencePayment,
			ReferenceID:    evt.PaymentIntentID,
			IdempotencyKey: idempotency.CheckoutKey(evt.EventID),
			Metadata: types.Metadata{
				"gateway_subscription_id": evt.GatewaySubscriptionID,
				"plan_id":                 evt.PlanID,
			},
		})
		if err != nil && !ierr.IsDuplicateLedgerEntry(err) {
			return err
		}
	}

	s.entitlements.RefreshEntitlements(ctx, evt.TeamID)
	s.Logger.Infow("subscription checkout applied",
		"team_id", evt.TeamID,
		"gateway_subscription_id", evt.GatewaySubscriptionID,
		"event_id", evt.EventID,
	)
	return nil
}

func (s *subscriptionService) HandleSubscriptionUpdated(ctx context.Context, upd SubscriptionUpdate) error {
	sub, err := s.SubscriptionRepo.GetByGatewayID(ctx, upd.GatewaySubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("update for unknown subscription skipped",
				"gateway_subscription_id", upd.GatewaySubscriptionID,
			)
			return nil
		}
		return err
	}

	sub.Status = types.SubscriptionStatusFromGateway(upd.GatewayStatus)
	if !upd.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = upd.CurrentPeriodStart
	}
	if !upd.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = upd.CurrentPeriodEnd
	}
	if upd.SeatsQuantity > 0 {
		sub.SeatsQuantity = upd.SeatsQuantity
	}
	sub.UpdatedAt = s.Clock.Now()
	if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.entitlements.RefreshEntitlements(ctx, sub.TeamID)
	return nil
}

func (s *subscriptionService) HandleSubscriptionDeleted(ctx context.Context, gatewaySubscriptionID string) error {
	sub, err := s.SubscriptionRepo.GetByGatewayID(ctx, gatewaySubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}

	sub.Status = types.SubscriptionStatusCanceled
	sub.UpdatedAt = s.Clock.Now()
	if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.entitlements.RefreshEntitlements(ctx, sub.TeamID)
	return nil
}

func (s *subscriptionService) GetActiveByTeam(ctx context.Context, teamID string) (*subscription.Subscription, error) {
	return s.SubscriptionRepo.GetActiveByTeam(ctx, teamID)
}
