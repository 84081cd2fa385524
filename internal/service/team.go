package service

import (
	"context"

	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// CreateTeamRequest creates or fetches a team by its external id
type CreateTeamRequest struct {
	AppID           string            `json:"app_id" validate:"required"`
	ExternalTeamID  string            `json:"external_team_id" validate:"required"`
	Name            string            `json:"name" validate:"required"`
	Kind            types.TeamKind    `json:"kind"`
	OwnerUserID     *string           `json:"owner_user_id,omitempty"`
	DefaultCurrency string            `json:"default_currency"`
	BillingMode     types.BillingMode `json:"billing_mode"`
}

// CreateTeamResult reports whether the team already existed
type CreateTeamResult struct {
	Team    *team.Team `json:"team"`
	Created bool       `json:"created"`
}

// TeamService owns teams, their billing entities, members, and wallet
// configuration. Creation is idempotent on (app, externalTeamId).
type TeamService interface {
	CreateTeam(ctx context.Context, req CreateTeamRequest) (*CreateTeamResult, error)
	GetTeam(ctx context.Context, appID, teamID string) (*team.Team, error)
	// SoftRemoveMember marks the membership REMOVED, preserving history.
	// Removing an already removed member returns the unchanged record.
	SoftRemoveMember(ctx context.Context, appID, teamID, userID string) (*team.Member, error)
	GetWalletConfig(ctx context.Context, appID, teamID string) (*team.WalletConfig, error)
	UpsertWalletConfig(ctx context.Context, cfg *team.WalletConfig) error
}

type teamService struct {
	ServiceParams
}

func NewTeamService(params ServiceParams) TeamService {
	return &teamService{ServiceParams: params}
}

func (s *teamService) CreateTeam(ctx context.Context, req CreateTeamRequest) (*CreateTeamResult, error) {
	kind := req.Kind
	if kind == "" {
		kind = types.TeamKindStandard
	}
	billingMode := req.BillingMode
	if billingMode == "" {
		billingMode = types.BillingModeSubscription
	}
	currency := req.DefaultCurrency
	if currency == "" {
		currency = "usd"
	}

	t := &team.Team{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		AppID:           req.AppID,
		Name:            req.Name,
		Kind:            kind,
		OwnerUserID:     req.OwnerUserID,
		DefaultCurrency: currency,
		BillingMode:     billingMode,
		BillToID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ENTITY),
		BaseModel:       types.GetDefaultBaseModel(s.Clock.Now()),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err := s.TeamRepo.Create(ctx, t, req.ExternalTeamID)
	if err == nil {
		s.Logger.Infow("team created",
			"team_id", t.ID,
			"app_id", req.AppID,
			"external_team_id", req.ExternalTeamID,
		)
		return &CreateTeamResult{Team: t, Created: true}, nil
	}
	if !ierr.IsAlreadyExists(err) {
		return nil, err
	}

	// Lost the uniqueness race or replayed request; return the winner.
	existing, err := s.TeamRepo.GetByExternalRef(ctx, req.AppID, req.ExternalTeamID)
	if err != nil {
		return nil, err
	}
	return &CreateTeamResult{Team: existing, Created: false}, nil
}

func (s *teamService) GetTeam(ctx context.Context, appID, teamID string) (*team.Team, error) {
	t, err := s.TeamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.AppID != appID {
		return nil, ierr.NewError("team not found").
			WithHintf("Team %s does not belong to app %s", teamID, appID).
			Mark(ierr.ErrNotFound)
	}
	return t, nil
}

func (s *teamService) SoftRemoveMember(ctx context.Context, appID, teamID, userID string) (*team.Member, error) {
	if _, err := s.GetTeam(ctx, appID, teamID); err != nil {
		return nil, err
	}
	return s.TeamRepo.SoftRemoveMember(ctx, teamID, userID)
}

func (s *teamService) GetWalletConfig(ctx context.Context, appID, teamID string) (*team.WalletConfig, error) {
	return s.TeamRepo.GetWalletConfig(ctx, appID, teamID)
}

func (s *teamService) UpsertWalletConfig(ctx context.Context, cfg *team.WalletConfig) error {
	return s.TeamRepo.UpsertWalletConfig(ctx, cfg)
}
