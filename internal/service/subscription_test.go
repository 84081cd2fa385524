package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	subscriptions SubscriptionService
	ledger        LedgerService

	team *team.Team
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestParams(&s.BaseServiceTestSuite)
	s.ledger = NewLedgerService(params)
	s.subscriptions = NewSubscriptionService(params, s.ledger, NewEntitlementService(params))

	s.team = &team.Team{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		AppID:           "app_1",
		Name:            "Acme",
		Kind:            types.TeamKindStandard,
		DefaultCurrency: "usd",
		BillingMode:     types.BillingModeSubscription,
		BillToID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ENTITY),
		BaseModel:       types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().TeamRepo.Create(s.GetContext(), s.team, "ext-1"))
}

func (s *SubscriptionServiceSuite) checkoutEvent(eventID string) CheckoutCompleted {
	return CheckoutCompleted{
		EventID:               eventID,
		AppID:                 "app_1",
		TeamID:                s.team.ID,
		PlanID:                "plan_pro",
		GatewaySubscriptionID: "sub_gw_1",
		GatewayStatus:         "active",
		CurrentPeriodStart:    s.GetNow(),
		CurrentPeriodEnd:      s.GetNow().AddDate(0, 1, 0),
		SeatsQuantity:         3,
		AmountTotalMinor:      2900,
		Currency:              "usd",
		PaymentIntentID:       "pi_1",
	}
}

func (s *SubscriptionServiceSuite) arBalance() int64 {
	balance, err := s.ledger.GetBalanceByType(
		s.GetContext(), "app_1", s.team.BillToID, types.LedgerAccountAccountsReceivable)
	s.NoError(err)
	return balance
}

func (s *SubscriptionServiceSuite) TestCheckoutCompletedUpsertsAndCharges() {
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), s.checkoutEvent("evt_1")))

	sub, err := s.subscriptions.GetActiveByTeam(s.GetContext(), s.team.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.Status)
	s.Equal("plan_pro", sub.PlanID)
	s.Equal(int64(3), sub.SeatsQuantity)
	s.Equal(int64(2900), s.arBalance())
}

func (s *SubscriptionServiceSuite) TestCheckoutRedeliveryChargesOnce() {
	evt := s.checkoutEvent("evt_1")
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), evt))
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), evt))

	s.Equal(int64(2900), s.arBalance())

	entries, err := s.ledger.ListEntriesByReference(s.GetContext(), types.LedgerReferencePayment, "pi_1")
	s.NoError(err)
	s.Len(entries, 1)
}

func (s *SubscriptionServiceSuite) TestTrialCheckoutPostsNoCharge() {
	evt := s.checkoutEvent("evt_1")
	evt.GatewayStatus = "trialing"
	evt.AmountTotalMinor = 0
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), evt))

	s.Zero(s.arBalance())
	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, sub.Status)
}

func (s *SubscriptionServiceSuite) TestCheckoutForUnknownTeamFails() {
	evt := s.checkoutEvent("evt_1")
	evt.TeamID = "team_missing"
	err := s.subscriptions.HandleCheckoutCompleted(s.GetContext(), evt)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestSubscriptionUpdatedAppliesChanges() {
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), s.checkoutEvent("evt_1")))

	newEnd := s.GetNow().AddDate(0, 2, 0)
	s.NoError(s.subscriptions.HandleSubscriptionUpdated(s.GetContext(), SubscriptionUpdate{
		GatewaySubscriptionID: "sub_gw_1",
		GatewayStatus:         "past_due",
		CurrentPeriodEnd:      newEnd,
		SeatsQuantity:         5,
	}))

	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.Status)
	s.Equal(int64(5), sub.SeatsQuantity)
	s.True(sub.CurrentPeriodEnd.Equal(newEnd))
	// Zero-valued fields are left alone.
	s.False(sub.CurrentPeriodStart.IsZero())
}

func (s *SubscriptionServiceSuite) TestUpdateForUnknownSubscriptionIsSkipped() {
	err := s.subscriptions.HandleSubscriptionUpdated(s.GetContext(), SubscriptionUpdate{
		GatewaySubscriptionID: "sub_gw_never_seen",
		GatewayStatus:         "active",
	})
	s.NoError(err)
}

func (s *SubscriptionServiceSuite) TestSubscriptionDeletedCancels() {
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), s.checkoutEvent("evt_1")))
	s.NoError(s.subscriptions.HandleSubscriptionDeleted(s.GetContext(), "sub_gw_1"))

	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.Status)

	// Canceled subscriptions no longer count as active.
	_, err = s.subscriptions.GetActiveByTeam(s.GetContext(), s.team.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestDeleteForUnknownSubscriptionIsNoop() {
	s.NoError(s.subscriptions.HandleSubscriptionDeleted(s.GetContext(), "sub_gw_never_seen"))
}

func (s *SubscriptionServiceSuite) TestCheckoutRefreshesEntitlementCache() {
	// Warm the cache with the no-subscription view.
	entitlements := NewEntitlementService(newTestParams(&s.BaseServiceTestSuite))
	before, err := entitlements.Resolve(s.GetContext(), "app_1", s.team.ID)
	s.NoError(err)
	s.Empty(before.Features)

	plan := &catalog.Plan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		AppID:        "app_1",
		Code:         "pro",
		Name:         "Pro",
		FeatureFlags: types.FeatureFlags{"priority_support": true},
		BaseModel:    types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().CatalogRepo.CreatePlan(s.GetContext(), plan))

	evt := s.checkoutEvent("evt_1")
	evt.PlanID = plan.ID
	s.NoError(s.subscriptions.HandleCheckoutCompleted(s.GetContext(), evt))

	after, err := entitlements.Resolve(s.GetContext(), "app_1", s.team.ID)
	s.NoError(err)
	s.True(after.Features["priority_support"])
}
