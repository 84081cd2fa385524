package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
)

// Gateway is the slice of the Stripe API the driver uses. Tests swap in
// a stub; production wraps the SDK client.
type Gateway interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionCreateParams) (*stripe.BillingPortalSession, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

type sdkGateway struct {
	client *stripe.Client
	logger *logger.Logger
}

// NewGateway builds the SDK-backed gateway from the configured secret
// key. Without a key the service still boots; gateway calls fail
// per-request instead.
func NewGateway(cfg *config.Configuration, logger *logger.Logger) (Gateway, error) {
	if cfg.Stripe.SecretKey == "" {
		logger.Warnw("stripe secret key not configured, gateway operations are disabled")
		return disabledGateway{}, nil
	}
	return &sdkGateway{
		client: stripe.NewClient(cfg.Stripe.SecretKey, nil),
		logger: logger,
	}, nil
}

// disabledGateway stands in when no secret key is configured.
type disabledGateway struct{}

func (disabledGateway) err() error {
	return ierr.NewError("stripe gateway is not configured").
		WithHint("Set STRIPE_SECRET_KEY to enable gateway operations").
		Mark(ierr.ErrValidation)
}

func (g disabledGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	return nil, g.err()
}

func (g disabledGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return nil, g.err()
}

func (g disabledGateway) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionCreateParams) (*stripe.BillingPortalSession, error) {
	return nil, g.err()
}

func (g disabledGateway) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	return nil, g.err()
}

func (g *sdkGateway) CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	customer, err := g.client.V1Customers.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create gateway customer").
			Mark(ierr.ErrHTTPClient)
	}
	return customer, nil
}

func (g *sdkGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	session, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create checkout session").
			Mark(ierr.ErrHTTPClient)
	}
	return session, nil
}

func (g *sdkGateway) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionCreateParams) (*stripe.BillingPortalSession, error) {
	session, err := g.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create portal session").
			Mark(ierr.ErrHTTPClient)
	}
	return session, nil
}

func (g *sdkGateway) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create payment intent").
			Mark(ierr.ErrHTTPClient)
	}
	return intent, nil
}
