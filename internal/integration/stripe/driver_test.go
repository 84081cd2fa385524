package stripe

import (
	"context"
	"fmt"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

// stubGateway records calls and answers with canned objects. Hooks let
// a test interleave behavior mid-call.
type stubGateway struct {
	customerSeq    int
	customerParams []*stripeapi.CustomerCreateParams
	sessionParams  []*stripeapi.CheckoutSessionCreateParams
	portalParams   []*stripeapi.BillingPortalSessionCreateParams
	intentParams   []*stripeapi.PaymentIntentCreateParams

	onCreateCustomer func()
}

func (g *stubGateway) CreateCustomer(ctx context.Context, params *stripeapi.CustomerCreateParams) (*stripeapi.Customer, error) {
	if g.onCreateCustomer != nil {
		g.onCreateCustomer()
	}
	g.customerSeq++
	g.customerParams = append(g.customerParams, params)
	return &stripeapi.Customer{ID: fmt.Sprintf("cus_%d", g.customerSeq)}, nil
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, params *stripeapi.CheckoutSessionCreateParams) (*stripeapi.CheckoutSession, error) {
	g.sessionParams = append(g.sessionParams, params)
	return &stripeapi.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (g *stubGateway) CreatePortalSession(ctx context.Context, params *stripeapi.BillingPortalSessionCreateParams) (*stripeapi.BillingPortalSession, error) {
	g.portalParams = append(g.portalParams, params)
	return &stripeapi.BillingPortalSession{URL: "https://portal.example/ps_1"}, nil
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, params *stripeapi.PaymentIntentCreateParams) (*stripeapi.PaymentIntent, error) {
	g.intentParams = append(g.intentParams, params)
	return &stripeapi.PaymentIntent{ID: "pi_1"}, nil
}

type StripeDriverSuite struct {
	testutil.BaseServiceTestSuite
	gateway *stubGateway
	driver  *Driver
	ledger  service.LedgerService

	team *team.Team
}

func TestStripeDriver(t *testing.T) {
	suite.Run(t, new(StripeDriverSuite))
}

func (s *StripeDriverSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()

	s.ledger = service.NewLedgerService(service.ServiceParams{
		Logger:     s.GetLogger(),
		Config:     s.GetConfig(),
		Clock:      s.GetClock(),
		Cache:      s.GetCache(),
		TeamRepo:   stores.TeamRepo,
		LedgerRepo: stores.LedgerRepo,
	})

	s.gateway = &stubGateway{}
	s.driver = NewDriver(
		s.gateway,
		s.GetConfig(),
		s.GetLogger(),
		s.GetClock(),
		stores.TeamRepo,
		stores.CatalogRepo,
		s.ledger,
	)

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

func (s *StripeDriverSuite) seedPlanWithPrices(withSeat bool) *catalog.Plan {
	plan := &catalog.Plan{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		AppID:     "app_1",
		Code:      "pro",
		Name:      "Pro",
		BaseModel: types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().CatalogRepo.CreatePlan(s.GetContext(), plan))

	planID := plan.ID
	s.NoError(s.GetStores().CatalogRepo.CreateProductMap(s.GetContext(), &catalog.ProductMap{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT_MAP),
		PlanID:           &planID,
		Kind:             types.ProductMapKindBase,
		GatewayProductID: "prod_base",
		GatewayPriceID:   "price_base",
	}))
	if withSeat {
		s.NoError(s.GetStores().CatalogRepo.CreateProductMap(s.GetContext(), &catalog.ProductMap{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT_MAP),
			PlanID:           &planID,
			Kind:             types.ProductMapKindSeat,
			GatewayProductID: "prod_seat",
			GatewayPriceID:   "price_seat",
		}))
	}
	return plan
}

func (s *StripeDriverSuite) creditWallet(amount int64) {
	_, err := s.ledger.CreateEntry(s.GetContext(), service.CreateEntryRequest{
		AppID:          "app_1",
		BillToID:       s.team.BillToID,
		AccountType:    types.LedgerAccountWallet,
		Type:           types.LedgerEntryTopup,
		AmountMinor:    amount,
		Currency:       "usd",
		ReferenceType:  types.LedgerReferenceGatewayEvent,
		ReferenceID:    "evt_seed",
		IdempotencyKey: "seed-credit",
	})
	s.NoError(err)
}

func (s *StripeDriverSuite) TestGetOrCreateCustomerCreatesOnce() {
	id, err := s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)
	s.Equal("cus_1", id)
	s.Len(s.gateway.customerParams, 1)
	s.Equal(s.team.ID, s.gateway.customerParams[0].Metadata["teamId"])

	// Second call reads the stored id, no gateway round trip.
	id, err = s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)
	s.Equal("cus_1", id)
	s.Len(s.gateway.customerParams, 1)
}

func (s *StripeDriverSuite) TestGetOrCreateCustomerLosesClaimRace() {
	// A concurrent caller claims the row while our gateway call is in
	// flight; the loser must adopt the winner's customer.
	s.gateway.onCreateCustomer = func() {
		claimed, err := s.GetStores().TeamRepo.ClaimStripeCustomerID(s.GetContext(), s.team.ID, "cus_winner")
		s.NoError(err)
		s.True(claimed)
	}

	id, err := s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)
	s.Equal("cus_winner", id)

	t, err := s.GetStores().TeamRepo.GetByID(s.GetContext(), s.team.ID)
	s.NoError(err)
	s.Equal("cus_winner", *t.StripeCustomerID)
}

func (s *StripeDriverSuite) TestSubscriptionCheckoutNeedsBasePrice() {
	plan := &catalog.Plan{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		AppID:     "app_1",
		Code:      "pro",
		Name:      "Pro",
		BaseModel: types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().CatalogRepo.CreatePlan(s.GetContext(), plan))

	_, err := s.driver.CreateSubscriptionCheckout(s.GetContext(), SubscriptionCheckoutRequest{
		AppID:      "app_1",
		TeamID:     s.team.ID,
		PlanCode:   "pro",
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/cancel",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *StripeDriverSuite) TestSubscriptionCheckoutWithSeats() {
	s.seedPlanWithPrices(true)

	session, err := s.driver.CreateSubscriptionCheckout(s.GetContext(), SubscriptionCheckoutRequest{
		AppID:      "app_1",
		TeamID:     s.team.ID,
		PlanCode:   "pro",
		Seats:      4,
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/cancel",
	})
	s.NoError(err)
	s.Equal("cs_1", session.SessionID)
	s.NotEmpty(session.CustomerID)

	params := s.gateway.sessionParams[0]
	s.Len(params.LineItems, 2)
	s.Equal("price_base", *params.LineItems[0].Price)
	s.Equal("price_seat", *params.LineItems[1].Price)
	s.Equal(int64(4), *params.LineItems[1].Quantity)
	s.Equal(s.team.ID, params.Metadata["teamId"])
	s.NotEmpty(params.Metadata["planId"])
}

func (s *StripeDriverSuite) TestSubscriptionCheckoutRejectsSeatsWithoutSeatPrice() {
	s.seedPlanWithPrices(false)

	_, err := s.driver.CreateSubscriptionCheckout(s.GetContext(), SubscriptionCheckoutRequest{
		AppID:      "app_1",
		TeamID:     s.team.ID,
		PlanCode:   "pro",
		Seats:      2,
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/cancel",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *StripeDriverSuite) TestTopupCheckoutCarriesIntentMetadata() {
	session, err := s.driver.CreateTopupCheckout(s.GetContext(), TopupCheckoutRequest{
		AppID:       "app_1",
		TeamID:      s.team.ID,
		AmountMinor: 5000,
		Currency:    "usd",
		SuccessURL:  "https://app.example/ok",
		CancelURL:   "https://app.example/cancel",
	})
	s.NoError(err)
	s.Equal("cs_1", session.SessionID)

	params := s.gateway.sessionParams[0]
	s.Equal("wallet_topup", params.Metadata["type"])
	s.Equal("5000", params.Metadata["amountMinor"])
	// The payment intent mirrors the metadata for the webhook.
	s.Equal("wallet_topup", params.PaymentIntentData.Metadata["type"])
	s.Equal(int64(5000), *params.LineItems[0].PriceData.UnitAmount)
}

func (s *StripeDriverSuite) TestTopupCheckoutRejectsNonPositiveAmount() {
	_, err := s.driver.CreateTopupCheckout(s.GetContext(), TopupCheckoutRequest{
		AppID:       "app_1",
		TeamID:      s.team.ID,
		AmountMinor: 0,
		Currency:    "usd",
		SuccessURL:  "https://app.example/ok",
		CancelURL:   "https://app.example/cancel",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *StripeDriverSuite) TestPortalSessionRequiresCustomer() {
	_, err := s.driver.CreatePortalSession(s.GetContext(), s.team.ID, "https://app.example/settings")
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// A pending reservation is treated like a missing customer.
	claimed, err := s.GetStores().TeamRepo.ClaimStripeCustomerID(s.GetContext(), s.team.ID, "pending:req_1")
	s.NoError(err)
	s.True(claimed)

	_, err = s.driver.CreatePortalSession(s.GetContext(), s.team.ID, "https://app.example/settings")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *StripeDriverSuite) TestPortalSessionForKnownCustomer() {
	_, err := s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)

	url, err := s.driver.CreatePortalSession(s.GetContext(), s.team.ID, "https://app.example/settings")
	s.NoError(err)
	s.Equal("https://portal.example/ps_1", url)
	s.Equal("cus_1", *s.gateway.portalParams[0].Customer)
}

func (s *StripeDriverSuite) TestAutoTopUpWithoutConfigIsNoop() {
	s.NoError(s.driver.CheckAndTriggerAutoTopUp(s.GetContext(), "app_1", s.team.ID))
	s.Empty(s.gateway.intentParams)
}

func (s *StripeDriverSuite) TestAutoTopUpDisabledIsNoop() {
	s.NoError(s.GetStores().TeamRepo.UpsertWalletConfig(s.GetContext(), &team.WalletConfig{
		AppID:            "app_1",
		TeamID:           s.team.ID,
		AutoTopUpEnabled: false,
		ThresholdMinor:   1000,
		TopUpAmountMinor: 5000,
	}))
	s.NoError(s.driver.CheckAndTriggerAutoTopUp(s.GetContext(), "app_1", s.team.ID))
	s.Empty(s.gateway.intentParams)
}

func (s *StripeDriverSuite) TestAutoTopUpThresholdIsExclusive() {
	s.NoError(s.GetStores().TeamRepo.UpsertWalletConfig(s.GetContext(), &team.WalletConfig{
		AppID:            "app_1",
		TeamID:           s.team.ID,
		AutoTopUpEnabled: true,
		ThresholdMinor:   1000,
		TopUpAmountMinor: 5000,
	}))
	_, err := s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)

	// Exactly at the threshold: no trigger.
	s.creditWallet(1000)
	s.NoError(s.driver.CheckAndTriggerAutoTopUp(s.GetContext(), "app_1", s.team.ID))
	s.Empty(s.gateway.intentParams)
}

func (s *StripeDriverSuite) TestAutoTopUpFiresBelowThreshold() {
	s.NoError(s.GetStores().TeamRepo.UpsertWalletConfig(s.GetContext(), &team.WalletConfig{
		AppID:            "app_1",
		TeamID:           s.team.ID,
		AutoTopUpEnabled: true,
		ThresholdMinor:   1000,
		TopUpAmountMinor: 5000,
	}))
	_, err := s.driver.GetOrCreateCustomer(s.GetContext(), s.team.ID, "app_1")
	s.NoError(err)

	s.creditWallet(999)
	s.NoError(s.driver.CheckAndTriggerAutoTopUp(s.GetContext(), "app_1", s.team.ID))

	s.Require().Len(s.gateway.intentParams, 1)
	params := s.gateway.intentParams[0]
	s.Equal(int64(5000), *params.Amount)
	s.Equal("usd", *params.Currency)
	s.Equal("cus_1", *params.Customer)
	s.True(*params.OffSession)
	s.True(*params.Confirm)
	s.Equal("auto_topup", params.Metadata["trigger"])
	s.Equal("wallet_topup", params.Metadata["type"])
}

func (s *StripeDriverSuite) TestAutoTopUpNeedsCustomer() {
	s.NoError(s.GetStores().TeamRepo.UpsertWalletConfig(s.GetContext(), &team.WalletConfig{
		AppID:            "app_1",
		TeamID:           s.team.ID,
		AutoTopUpEnabled: true,
		ThresholdMinor:   1000,
		TopUpAmountMinor: 5000,
	}))

	err := s.driver.CheckAndTriggerAutoTopUp(s.GetContext(), "app_1", s.team.ID)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
