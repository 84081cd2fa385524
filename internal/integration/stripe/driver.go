package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// pendingCustomerPrefix marks a customer id reservation that never
// completed; portal sessions reject it like a missing id.
const pendingCustomerPrefix = "pending:"

// CheckoutSession is the driver's gateway-agnostic session view
type CheckoutSession struct {
	SessionID  string `json:"session_id"`
	URL        string `json:"url"`
	CustomerID string `json:"customer_id"`
}

// SubscriptionCheckoutRequest opens a subscription checkout for a plan
type SubscriptionCheckoutRequest struct {
	AppID      string `json:"app_id"`
	TeamID     string `json:"team_id"`
	PlanCode   string `json:"plan_code" validate:"required"`
	Seats      int64  `json:"seats"`
	SuccessURL string `json:"success_url" validate:"required"`
	CancelURL  string `json:"cancel_url" validate:"required"`
}

// TopupCheckoutRequest opens a one-off wallet top-up checkout
type TopupCheckoutRequest struct {
	AppID       string `json:"app_id"`
	TeamID      string `json:"team_id"`
	AmountMinor int64  `json:"amount_minor" validate:"gt=0"`
	Currency    string `json:"currency" validate:"required"`
	SuccessURL  string `json:"success_url" validate:"required"`
	CancelURL   string `json:"cancel_url" validate:"required"`
}

// Driver wraps the payment gateway for checkout, top-ups, portal
// sessions, and auto top-up. It also implements
// service.AutoTopUpTrigger.
type Driver struct {
	gateway Gateway
	cfg     *config.Configuration
	logger  *logger.Logger
	clock   types.Clock
	teams   team.Repository
	catalog catalog.Repository
	ledger  service.LedgerService
}

func NewDriver(
	gateway Gateway,
	cfg *config.Configuration,
	logger *logger.Logger,
	clock types.Clock,
	teams team.Repository,
	catalogRepo catalog.Repository,
	ledger service.LedgerService,
) *Driver {
	return &Driver{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		teams:   teams,
		catalog: catalogRepo,
		ledger:  ledger,
	}
}

// GetOrCreateCustomer returns the team's gateway customer id, creating
// the customer on first use. Concurrent callers race on the optimistic
// single-row claim; the loser re-reads the winner's id.
func (d *Driver) GetOrCreateCustomer(ctx context.Context, teamID, appID string) (string, error) {
	t, err := d.teams.GetByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	if t.StripeCustomerID != nil && *t.StripeCustomerID != "" &&
		!strings.HasPrefix(*t.StripeCustomerID, pendingCustomerPrefix) {
		return *t.StripeCustomerID, nil
	}

	customer, err := d.gateway.CreateCustomer(ctx, &stripe.CustomerCreateParams{
		Name: stripe.String(t.Name),
		Metadata: map[string]string{
			"teamId": teamID,
			"appId":  appID,
		},
	})
	if err != nil {
		return "", err
	}

	claimed, err := d.teams.ClaimStripeCustomerID(ctx, teamID, customer.ID)
	if err != nil {
		return "", err
	}
	if claimed {
		return customer.ID, nil
	}

	// Lost the race; the concurrent writer's customer wins.
	t, err = d.teams.GetByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	if t.StripeCustomerID == nil || *t.StripeCustomerID == "" {
		return "", ierr.NewError("customer claim failed").
			WithHintf("Team %s has no gateway customer after a lost claim", teamID).
			Mark(ierr.ErrSystem)
	}
	d.logger.Infow("gateway customer claim lost, using winner",
		"team_id", teamID,
		"orphaned_customer_id", customer.ID,
	)
	return *t.StripeCustomerID, nil
}

func (d *Driver) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (*CheckoutSession, error) {
	plan, err := d.catalog.GetPlanByCode(ctx, req.AppID, req.PlanCode)
	if err != nil {
		return nil, err
	}
	if _, err := d.teams.GetByID(ctx, req.TeamID); err != nil {
		return nil, err
	}

	maps, err := d.catalog.ListProductMapsForPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	var base, seat *catalog.ProductMap
	for _, m := range maps {
		switch m.Kind {
		case types.ProductMapKindBase:
			base = m
		case types.ProductMapKindSeat:
			seat = m
		}
	}
	if base == nil {
		return nil, ierr.NewError("plan has no base price").
			WithHintf("Plan %s has no BASE product mapping", plan.Code).
			Mark(ierr.ErrValidation)
	}

	lineItems := []*stripe.CheckoutSessionCreateLineItemParams{
		{
			Price:    stripe.String(base.GatewayPriceID),
			Quantity: stripe.Int64(1),
		},
	}
	if req.Seats > 0 {
		if seat == nil {
			return nil, ierr.NewError("plan has no seat price").
				WithHintf("Plan %s has no SEAT product mapping for %d seats", plan.Code, req.Seats).
				Mark(ierr.ErrValidation)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			Price:    stripe.String(seat.GatewayPriceID),
			Quantity: stripe.Int64(req.Seats),
		})
	}

	customerID, err := d.GetOrCreateCustomer(ctx, req.TeamID, req.AppID)
	if err != nil {
		return nil, err
	}

	session, err := d.gateway.CreateCheckoutSession(ctx, &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		LineItems:  lineItems,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata: map[string]string{
			"teamId": req.TeamID,
			"appId":  req.AppID,
			"planId": plan.ID,
		},
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{SessionID: session.ID, URL: session.URL, CustomerID: customerID}, nil
}

func (d *Driver) CreateTopupCheckout(ctx context.Context, req TopupCheckoutRequest) (*CheckoutSession, error) {
	if req.AmountMinor <= 0 {
		return nil, ierr.NewError("top-up amount must be positive").
			WithHint("amount_minor must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	customerID, err := d.GetOrCreateCustomer(ctx, req.TeamID, req.AppID)
	if err != nil {
		return nil, err
	}

	// The payment intent mirrors the session metadata so the
	// payment_intent.succeeded webhook can identify the top-up.
	metadata := topupMetadata(req.TeamID, req.AppID, req.AmountMinor)
	session, err := d.gateway.CreateCheckoutSession(ctx, &stripe.CheckoutSessionCreateParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Wallet Top-Up"),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{SessionID: session.ID, URL: session.URL, CustomerID: customerID}, nil
}

func (d *Driver) CreatePortalSession(ctx context.Context, teamID, returnURL string) (string, error) {
	t, err := d.teams.GetByID(ctx, teamID)
	if err != nil {
		return "", err
	}
	if t.StripeCustomerID == nil || *t.StripeCustomerID == "" ||
		strings.HasPrefix(*t.StripeCustomerID, pendingCustomerPrefix) {
		return "", ierr.NewError("team has no gateway customer").
			WithHintf("Team %s has not completed a checkout yet", teamID).
			Mark(ierr.ErrValidation)
	}

	session, err := d.gateway.CreatePortalSession(ctx, &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(*t.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// CheckAndTriggerAutoTopUp starts an off-session top-up when the
// wallet balance dropped strictly below the configured threshold.
// A balance exactly at the threshold does not trigger.
func (d *Driver) CheckAndTriggerAutoTopUp(ctx context.Context, appID, teamID string) error {
	cfg, err := d.teams.GetWalletConfig(ctx, appID, teamID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !cfg.AutoTopUpEnabled {
		return nil
	}

	t, err := d.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}

	balance, err := d.ledger.GetBalanceByType(ctx, appID, t.BillToID, types.LedgerAccountWallet)
	if err != nil {
		return err
	}
	if balance >= cfg.ThresholdMinor {
		return nil
	}

	if t.StripeCustomerID == nil || *t.StripeCustomerID == "" ||
		strings.HasPrefix(*t.StripeCustomerID, pendingCustomerPrefix) {
		return ierr.NewError("auto top-up needs a gateway customer").
			WithHintf("Team %s has no gateway customer for off-session payment", teamID).
			Mark(ierr.ErrValidation)
	}

	metadata := topupMetadata(teamID, appID, cfg.TopUpAmountMinor)
	metadata["trigger"] = "auto_topup"

	intent, err := d.gateway.CreatePaymentIntent(ctx, &stripe.PaymentIntentCreateParams{
		Amount:     stripe.Int64(cfg.TopUpAmountMinor),
		Currency:   stripe.String(t.DefaultCurrency),
		Customer:   stripe.String(*t.StripeCustomerID),
		OffSession: stripe.Bool(true),
		Confirm:    stripe.Bool(true),
		Metadata:   metadata,
	})
	if err != nil {
		return err
	}

	d.logger.Infow("auto top-up triggered",
		"team_id", teamID,
		"amount_minor", cfg.TopUpAmountMinor,
		"payment_intent_id", intent.ID,
		"balance_minor", balance,
	)
	return nil
}

func topupMetadata(teamID, appID string, amountMinor int64) map[string]string {
	return map[string]string{
		"teamId":      teamID,
		"appId":       appID,
		"type":        "wallet_topup",
		"amountMinor": fmt.Sprintf("%d", amountMinor),
	}
}
