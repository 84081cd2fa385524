package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/postgres"
)

// HealthHandler answers liveness probes with a store ping
type HealthHandler struct {
	db *postgres.DB
}

func NewHealthHandler(db *postgres.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		_ = c.Error(ierr.WithError(err).
			WithHint("Store is unreachable").
			Mark(ierr.ErrSystem))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
