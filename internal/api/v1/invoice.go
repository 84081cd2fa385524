package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// InvoiceHandler serves the admin invoice operations
type InvoiceHandler struct {
	periodClose service.PeriodCloseService
	clock       types.Clock
	logger      *logger.Logger
}

func NewInvoiceHandler(periodClose service.PeriodCloseService, clock types.Clock, logger *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{periodClose: periodClose, clock: clock, logger: logger}
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.periodClose.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ExportInvoice returns the invoice with its lines and writes an audit
// record naming the admin actor.
func (h *InvoiceHandler) ExportInvoice(c *gin.Context) {
	export, err := h.periodClose.ExportInvoice(c.Request.Context(), c.Param("id"), "admin")
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, export)
}

func (h *InvoiceHandler) MarkInvoicePaid(c *gin.Context) {
	inv, err := h.periodClose.MarkInvoicePaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// RunPeriodClose triggers the close job on demand, optionally at a
// caller-chosen asOf. The scheduler runs the same job daily.
func (h *InvoiceHandler) RunPeriodClose(c *gin.Context) {
	asOf := h.clock.Now()
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = c.Error(ierr.WithError(err).
				WithHint("asOf must be an RFC3339 timestamp").
				Mark(ierr.ErrValidation))
			return
		}
		asOf = parsed
	}

	result, err := h.periodClose.Run(c.Request.Context(), asOf)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
