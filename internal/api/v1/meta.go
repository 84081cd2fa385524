package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
)

// MetaHandler serves the schema catalog and the capability manifest
type MetaHandler struct {
	meta   service.MetaService
	logger *logger.Logger
}

func NewMetaHandler(meta service.MetaService, logger *logger.Logger) *MetaHandler {
	return &MetaHandler{meta: meta, logger: logger}
}

func (h *MetaHandler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.meta.Capabilities(c.Request.Context()))
}

func (h *MetaHandler) ListSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"schemas": h.meta.ListSchemas(c.Request.Context())})
}

func (h *MetaHandler) GetSchema(c *gin.Context) {
	schema, err := h.meta.GetSchema(c.Request.Context(), c.Param("type"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, schema)
}
