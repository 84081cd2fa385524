package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/validator"
)

// UsageHandler serves event ingestion and the read-side aggregations
type UsageHandler struct {
	ingestion service.IngestionService
	queries   service.UsageQueryService
	logger    *logger.Logger
}

func NewUsageHandler(
	ingestion service.IngestionService,
	queries service.UsageQueryService,
	logger *logger.Logger,
) *UsageHandler {
	return &UsageHandler{ingestion: ingestion, queries: queries, logger: logger}
}

func (h *UsageHandler) IngestEvents(c *gin.Context) {
	var req dto.IngestEventsRequest
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

	result, err := h.ingestion.IngestBatch(c.Request.Context(), c.Param("appId"), req.ToService())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.IngestEventsResponse{
		Accepted:   result.Accepted,
		Duplicates: result.Duplicates,
	})
}

func (h *UsageHandler) QueryUsage(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	groupBy := service.UsageGroupBy(c.Query("groupBy"))

	teamID := c.Param("teamId")
	buckets, err := h.queries.QueryUsage(c.Request.Context(), teamID, from, to, groupBy)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.UsageQueryResponse{
		TeamID:  teamID,
		From:    from,
		To:      to,
		GroupBy: string(groupBy),
		Buckets: buckets,
	})
}

func (h *UsageHandler) QueryCOGS(c *gin.Context) {
	from, to, err := parseWindow(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	teamID := c.Param("teamId")
	buckets, err := h.queries.QueryCOGS(c.Request.Context(), teamID, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.UsageQueryResponse{
		TeamID:  teamID,
		From:    from,
		To:      to,
		Buckets: buckets,
	})
}

// parseWindow reads the mandatory from/to RFC3339 query bounds
func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, ierr.WithError(err).
			WithHint("from must be an RFC3339 timestamp").
			Mark(ierr.ErrValidation)
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, ierr.WithError(err).
			WithHint("to must be an RFC3339 timestamp").
			Mark(ierr.ErrValidation)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, ierr.NewError("empty query window").
			WithHint("to must be after from").
			Mark(ierr.ErrValidation)
	}
	return from, to, nil
}
