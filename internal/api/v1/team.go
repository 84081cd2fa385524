package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/api/dto"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/validator"
)

// TeamHandler serves team lifecycle and wallet configuration
type TeamHandler struct {
	teams  service.TeamService
	logger *logger.Logger
}

func NewTeamHandler(teams service.TeamService, logger *logger.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, logger: logger}
}

// CreateTeam is idempotent on externalTeamId: replays return the
// existing team with a 200 instead of a 201.
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req dto.CreateTeamRequest
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

	result, err := h.teams.CreateTeam(c.Request.Context(), req.ToService(c.Param("appId")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result.Team)
}

func (h *TeamHandler) GetTeam(c *gin.Context) {
	t, err := h.teams.GetTeam(c.Request.Context(), c.Param("appId"), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// RemoveMember soft-removes; removing a removed member returns the
// unchanged record.
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	m, err := h.teams.SoftRemoveMember(c.Request.Context(),
		c.Param("appId"), c.Param("teamId"), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *TeamHandler) GetWalletConfig(c *gin.Context) {
	cfg, err := h.teams.GetWalletConfig(c.Request.Context(), c.Param("appId"), c.Param("teamId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *TeamHandler) UpsertWalletConfig(c *gin.Context) {
	var req dto.WalletConfigRequest
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

	cfg := &team.WalletConfig{
		AppID:            c.Param("appId"),
		TeamID:           c.Param("teamId"),
		AutoTopUpEnabled: req.AutoTopUpEnabled,
		ThresholdMinor:   req.ThresholdMinor,
		TopUpAmountMinor: req.TopUpAmountMinor,
	}
	if err := h.teams.UpsertWalletConfig(c.Request.Context(), cfg); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
