package dto

// SubscriptionCheckoutRequest opens a subscription checkout session
type SubscriptionCheckoutRequest struct {
	PlanCode   string `json:"planCode" validate:"required"`
	Seats      int64  `json:"seats" validate:"gte=0"`
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
}

// TopupCheckoutRequest opens a one-off wallet top-up session
type TopupCheckoutRequest struct {
	AmountMinor int64  `json:"amountMinor" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	SuccessURL  string `json:"successUrl" validate:"required,url"`
	CancelURL   string `json:"cancelUrl" validate:"required,url"`
}

// PortalRequest opens the gateway customer portal
type PortalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}

// CheckoutSessionResponse points the client at the hosted page
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PortalResponse carries the hosted portal URL
type PortalResponse struct {
	URL string `json:"url"`
}
