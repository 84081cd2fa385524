package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
)

// AppHandler serves the admin-only app and secret endpoints
type AppHandler struct {
	apps   service.AppService
	logger *logger.Logger
}

func NewAppHandler(apps service.AppService, logger *logger.Logger) *AppHandler {
	return &AppHandler{apps: apps, logger: logger}
}

func (h *AppHandler) CreateApp(c *gin.Context) {
	var req dto.CreateAppRequest
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

	a, err := h.apps.CreateApp(c.Request.Context(), req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AppHandler) GetApp(c *gin.Context) {
	a, err := h.apps.GetApp(c.Request.Context(), c.Param("appId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AppHandler) MintSecret(c *gin.Context) {
	resp, err := h.apps.MintSecret(c.Request.Context(), c.Param("appId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.MintSecretResponse{Kid: resp.Kid, Secret: resp.Secret})
}

func (h *AppHandler) ListSecrets(c *gin.Context) {
	secrets, err := h.apps.ListSecrets(c.Request.Context(), c.Param("appId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	out := make([]*dto.SecretResponse, 0, len(secrets))
	for _, s := range secrets {
		out = append(out, dto.NewSecretResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"secrets": out})
}

// RevokeSecret is idempotent; revoking a revoked key is still a 200
func (h *AppHandler) RevokeSecret(c *gin.Context) {
	kid := c.Param("kid")
	if err := h.apps.RevokeSecret(c.Request.Context(), c.Param("appId"), kid); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kid": kid, "status": types.SecretStatusRevoked})
}
