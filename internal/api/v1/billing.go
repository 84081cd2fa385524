package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/validator"
)

// BillingHandler serves the admin-only bundle and contract endpoints
type BillingHandler struct {
	contracts service.ContractService
	logger    *logger.Logger
}

func NewBillingHandler(contracts service.ContractService, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{contracts: contracts, logger: logger}
}

func (h *BillingHandler) CreateBundle(c *gin.Context) {
	var req service.CreateBundleRequest
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

	b, err := h.contracts.CreateBundle(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BillingHandler) GetBundle(c *gin.Context) {
	b, err := h.contracts.GetBundle(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BillingHandler) UpdateBundle(c *gin.Context) {
	var req service.UpdateBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}

	b, err := h.contracts.UpdateBundle(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BillingHandler) AttachBundleApp(c *gin.Context) {
	var req service.AttachBundleAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}
	req.BundleID = c.Param("id")
	if err := validator.ValidateRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	a, err := h.contracts.AttachBundleApp(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *BillingHandler) UpsertBundlePolicy(c *gin.Context) {
	var req service.UpsertBundlePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Please check the request payload").
			Mark(ierr.ErrValidation))
		return
	}
	req.BundleID = c.Param("id")
	if err := validator.ValidateRequest(&req); err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.contracts.UpsertBundlePolicy(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *BillingHandler) CreateContract(c *gin.Context) {
	var req service.CreateContractRequest
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

	contract, err := h.contracts.CreateContract(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *BillingHandler) GetContract(c *gin.Context) {
	contract, err := h.contracts.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *BillingHandler) UpdateContractStatus(c *gin.Context) {
	var req dto.UpdateContractStatusRequest
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

	contract, err := h.contracts.UpdateContractStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// ReplaceOverrides swaps the full override set; an empty list clears it
func (h *BillingHandler) ReplaceOverrides(c *gin.Context) {
	var req dto.ReplaceOverridesRequest
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

	rows, err := h.contracts.ReplaceOverrides(c.Request.Context(), c.Param("id"), req.Overrides)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": rows})
}

func (h *BillingHandler) ListOverrides(c *gin.Context) {
	rows, err := h.contracts.ListOverrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": rows})
}
