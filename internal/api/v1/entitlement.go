package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
)

// EntitlementHandler serves resolved entitlements to SDK callers
type EntitlementHandler struct {
	entitlements service.EntitlementService
	logger       *logger.Logger
}

func NewEntitlementHandler(entitlements service.EntitlementService, logger *logger.Logger) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements, logger: logger}
}

func (h *EntitlementHandler) GetEntitlements(c *gin.Context) {
	result, err := h.entitlements.Resolve(c.Request.Context(), c.Param("appId"), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
