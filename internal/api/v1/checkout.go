package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/integration/stripe"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/validator"
)

// CheckoutHandler serves the gateway-backed checkout and portal flows
type CheckoutHandler struct {
	driver *stripe.Driver
	logger *logger.Logger
}

func NewCheckoutHandler(driver *stripe.Driver, logger *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{driver: driver, logger: logger}
}

func (h *CheckoutHandler) CreateSubscriptionCheckout(c *gin.Context) {
	var req dto.SubscriptionCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	session, err := h.driver.CreateSubscriptionCheckout(c.Request.Context(), stripe.SubscriptionCheckoutRequest{
		AppID:      c.Param("appId"),
		TeamID:     c.Param("teamId"),
		PlanCode:   req.PlanCode,
		Seats:      req.Seats,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckoutSessionResponse{SessionID: session.SessionID, URL: session.URL})
}

func (h *CheckoutHandler) CreateTopupCheckout(c *gin.Context) {
	var req dto.TopupCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	session, err := h.driver.CreateTopupCheckout(c.Request.Context(), stripe.TopupCheckoutRequest{
		AppID:       c.Param("appId"),
		TeamID:      c.Param("teamId"),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckoutSessionResponse{SessionID: session.SessionID, URL: session.URL})
}

func (h *CheckoutHandler) CreatePortalSession(c *gin.Context) {
	var req dto.PortalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	url, err := h.driver.CreatePortalSession(c.Request.Context(), c.Param("teamId"), req.ReturnURL)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.PortalResponse{URL: url})
}
