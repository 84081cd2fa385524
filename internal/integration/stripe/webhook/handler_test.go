package webhook

import (
	"context"
	"fmt"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/team"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type noopTrigger struct{}

func (noopTrigger) CheckAndTriggerAutoTopUp(ctx context.Context, appID, teamID string) error {
	return nil
}

type WebhookHandlerSuite struct {
	testutil.BaseServiceTestSuite
	handler *Handler
	ledger  service.LedgerService
	wallet  service.WalletService

	team *team.Team
}

func TestWebhookHandler(t *testing.T) {
	suite.Run(t, new(WebhookHandlerSuite))
}

func (s *WebhookHandlerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		Clock:            s.GetClock(),
		Cache:            s.GetCache(),
		AppRepo:          stores.AppRepo,
		TeamRepo:         stores.TeamRepo,
		CatalogRepo:      stores.CatalogRepo,
		SubscriptionRepo: stores.SubscriptionRepo,
		BundleRepo:       stores.BundleRepo,
		ContractRepo:     stores.ContractRepo,
		LedgerRepo:       stores.LedgerRepo,
	}

	s.ledger = service.NewLedgerService(params)
	entitlements := service.NewEntitlementService(params)
	s.wallet = service.NewWalletService(params, s.ledger, noopTrigger{})
	subscriptions := service.NewSubscriptionService(params, s.ledger, entitlements)

	s.handler = NewHandler(s.GetConfig(), s.GetLogger(), subscriptions, s.wallet)

	s.team = &team.Team{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		AppID:           "app_1",
		Name:            "Acme",
		Kind:            types.TeamKindStandard,
		DefaultCurrency: "usd",
		BillingMode:     types.BillingModeWallet,
		BillToID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ENTITY),
		BaseModel:       types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(stores.TeamRepo.Create(s.GetContext(), s.team, "ext-1"))
}

func event(id, eventType, raw string) stripeapi.Event {
	return stripeapi.Event{
		ID:   id,
		Type: stripeapi.EventType(eventType),
		Data: &stripeapi.EventData{Raw: []byte(raw)},
	}
}

func (s *WebhookHandlerSuite) checkoutPayload() string {
	return fmt.Sprintf(`{
		"id": "cs_1",
		"mode": "subscription",
		"amount_total": 2900,
		"currency": "usd",
		"metadata": {"teamId": %q, "appId": "app_1", "planId": "plan_pro"},
		"subscription": {
			"id": "sub_gw_1",
			"status": "active",
			"items": {"data": [{"quantity": 3, "current_period_start": 1750000000, "current_period_end": 1752600000}]}
		},
		"payment_intent": {"id": "pi_1"}
	}`, s.team.ID)
}

func (s *WebhookHandlerSuite) arBalance() int64 {
	balance, err := s.ledger.GetBalanceByType(
		s.GetContext(), "app_1", s.team.BillToID, types.LedgerAccountAccountsReceivable)
	s.NoError(err)
	return balance
}

func (s *WebhookHandlerSuite) TestCheckoutCompletedIsApplied() {
	evt := event("evt_1", "checkout.session.completed", s.checkoutPayload())
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))

	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.Status)
	s.Equal(int64(3), sub.SeatsQuantity)
	s.Equal(int64(2900), s.arBalance())
}

func (s *WebhookHandlerSuite) TestCheckoutRedeliveryIsIdempotent() {
	evt := event("evt_1", "checkout.session.completed", s.checkoutPayload())
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.Equal(int64(2900), s.arBalance())
}

func (s *WebhookHandlerSuite) TestPaymentModeCheckoutIsIgnored() {
	evt := event("evt_1", "checkout.session.completed", `{"id": "cs_1", "mode": "payment"}`)
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.Zero(s.arBalance())
}

func (s *WebhookHandlerSuite) TestCheckoutWithoutTeamMetadataIsAcknowledged() {
	evt := event("evt_1", "checkout.session.completed", `{"id": "cs_1", "mode": "subscription", "metadata": {}}`)
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
}

func (s *WebhookHandlerSuite) TestSubscriptionUpdatedRoutes() {
	s.NoError(s.handler.HandleEvent(s.GetContext(),
		event("evt_1", "checkout.session.completed", s.checkoutPayload())))

	raw := `{
		"id": "sub_gw_1",
		"status": "past_due",
		"items": {"data": [{"quantity": 5, "current_period_start": 1750000000, "current_period_end": 1755000000}]}
	}`
	s.NoError(s.handler.HandleEvent(s.GetContext(), event("evt_2", "customer.subscription.updated", raw)))

	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.Status)
	s.Equal(int64(5), sub.SeatsQuantity)
}

func (s *WebhookHandlerSuite) TestSubscriptionDeletedRoutes() {
	s.NoError(s.handler.HandleEvent(s.GetContext(),
		event("evt_1", "checkout.session.completed", s.checkoutPayload())))

	s.NoError(s.handler.HandleEvent(s.GetContext(),
		event("evt_2", "customer.subscription.deleted", `{"id": "sub_gw_1", "status": "canceled"}`)))

	sub, err := s.GetStores().SubscriptionRepo.GetByGatewayID(s.GetContext(), "sub_gw_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.Status)
}

func (s *WebhookHandlerSuite) walletBalance() int64 {
	balance, err := s.wallet.GetBalance(s.GetContext(), "app_1", s.team.BillToID)
	s.NoError(err)
	return balance
}

func (s *WebhookHandlerSuite) topupPayload() string {
	return fmt.Sprintf(`{
		"id": "pi_1",
		"amount": 5000,
		"currency": "usd",
		"metadata": {"type": "wallet_topup", "teamId": %q, "appId": "app_1", "amountMinor": "5000"}
	}`, s.team.ID)
}

func (s *WebhookHandlerSuite) TestTopUpPaymentCreditsWallet() {
	evt := event("evt_1", "payment_intent.succeeded", s.topupPayload())
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.Equal(int64(5000), s.walletBalance())

	// Redelivery credits nothing.
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.Equal(int64(5000), s.walletBalance())
}

func (s *WebhookHandlerSuite) TestNonTopUpPaymentIsIgnored() {
	evt := event("evt_1", "payment_intent.succeeded", `{"id": "pi_1", "amount": 5000, "metadata": {}}`)
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
	s.Zero(s.walletBalance())
}

func (s *WebhookHandlerSuite) TestUnknownEventTypeIsAcknowledged() {
	evt := event("evt_1", "invoice.finalized", `{}`)
	s.NoError(s.handler.HandleEvent(s.GetContext(), evt))
}

func (s *WebhookHandlerSuite) TestMalformedPayloadIsAnError() {
	evt := event("evt_1", "checkout.session.completed", `{not-json`)
	s.Error(s.handler.HandleEvent(s.GetContext(), evt))
}
