package webhook

import (
	"context"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler verifies and routes gateway webhook events. Every downstream
// handler is idempotent, so replayed deliveries are safe.
type Handler struct {
	cfg           *config.Configuration
	logger        *logger.Logger
	subscriptions service.SubscriptionService
	wallet        service.WalletService
}

func NewHandler(
	cfg *config.Configuration,
	logger *logger.Logger,
	subscriptions service.SubscriptionService,
	wallet service.WalletService,
) *Handler {
	return &Handler{
		cfg:           cfg,
		logger:        logger,
		subscriptions: subscriptions,
		wallet:        wallet,
	}
}

// ConstructEvent verifies the gateway signature over the raw payload
func (h *Handler) ConstructEvent(payload []byte, signature string) (stripeapi.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, h.cfg.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripeapi.Event{}, ierr.WithError(err).
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrUnauthorized)
	}
	return event, nil
}

// HandleEvent routes one verified event. Unknown types are logged and
// acknowledged so the gateway stops retrying them.
func (h *Handler) HandleEvent(ctx context.Context, event stripeapi.Event) error {
	h.logger.Infow("processing gateway webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return h.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(ctx, event)
	case "payment_intent.succeeded":
		return h.handlePaymentIntentSucceeded(ctx, event)
	default:
		h.logger.Infow("unhandled gateway event type", "type", event.Type)
		return nil
	}
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, event stripeapi.Event) error {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid checkout session payload").
			Mark(ierr.ErrValidation)
	}

	if session.Mode != stripeapi.CheckoutSessionModeSubscription {
		return nil
	}
	teamID := session.Metadata["teamId"]
	if teamID == "" {
		h.logger.Warnw("checkout completed without teamId metadata", "session_id", session.ID)
		return nil
	}

	evt := service.CheckoutCompleted{
		EventID:          event.ID,
		AppID:            session.Metadata["appId"],
		TeamID:           teamID,
		PlanID:           session.Metadata["planId"],
		AmountTotalMinor: session.AmountTotal,
		Currency:         string(session.Currency),
		GatewayStatus:    "active",
		SeatsQuantity:    0,
	}
	if session.Subscription != nil {
		evt.GatewaySubscriptionID = session.Subscription.ID
		if session.Subscription.Status != "" {
			evt.GatewayStatus = string(session.Subscription.Status)
		}
		if session.Subscription.Items != nil && len(session.Subscription.Items.Data) > 0 {
			first := session.Subscription.Items.Data[0]
			evt.SeatsQuantity = first.Quantity
			evt.CurrentPeriodStart = time.Unix(first.CurrentPeriodStart, 0).UTC()
			evt.CurrentPeriodEnd = time.Unix(first.CurrentPeriodEnd, 0).UTC()
		}
	}
	if session.PaymentIntent != nil {
		evt.PaymentIntentID = session.PaymentIntent.ID
	}

	return h.subscriptions.HandleCheckoutCompleted(ctx, evt)
}

func (h *Handler) handleSubscriptionUpdated(ctx context.Context, event stripeapi.Event) error {
	sub, err := parseSubscription(event)
	if err != nil {
		return err
	}

	upd := service.SubscriptionUpdate{
		GatewaySubscriptionID: sub.ID,
		GatewayStatus:         string(sub.Status),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		first := sub.Items.Data[0]
		upd.SeatsQuantity = first.Quantity
		upd.CurrentPeriodStart = time.Unix(first.CurrentPeriodStart, 0).UTC()
		upd.CurrentPeriodEnd = time.Unix(first.CurrentPeriodEnd, 0).UTC()
	}
	return h.subscriptions.HandleSubscriptionUpdated(ctx, upd)
}

func (h *Handler) handleSubscriptionDeleted(ctx context.Context, event stripeapi.Event) error {
	sub, err := parseSubscription(event)
	if err != nil {
		return err
	}
	return h.subscriptions.HandleSubscriptionDeleted(ctx, sub.ID)
}

func (h *Handler) handlePaymentIntentSucceeded(ctx context.Context, event stripeapi.Event) error {
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid payment intent payload").
			Mark(ierr.ErrValidation)
	}

	if intent.Metadata["type"] != "wallet_topup" {
		return nil
	}
	amountMinor, err := strconv.ParseInt(intent.Metadata["amountMinor"], 10, 64)
	if err != nil || amountMinor <= 0 {
		amountMinor = intent.Amount
	}

	return h.wallet.HandleTopUpSuccess(ctx, service.TopUpRequest{
		EventID:         event.ID,
		AppID:           intent.Metadata["appId"],
		TeamID:          intent.Metadata["teamId"],
		AmountMinor:     amountMinor,
		Currency:        string(intent.Currency),
		PaymentIntentID: intent.ID,
		Trigger:         intent.Metadata["trigger"],
	})
}

func parseSubscription(event stripeapi.Event) (*stripeapi.Subscription, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscription payload").
			Mark(ierr.ErrValidation)
	}
	return &sub, nil
}
