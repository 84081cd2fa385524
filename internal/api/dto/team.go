package dto

import (
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// CreateTeamRequest creates or fetches a team, idempotent on
// externalTeamId within the app.
type CreateTeamRequest struct {
	ExternalTeamID  string            `json:"externalTeamId" validate:"required"`
	Name            string            `json:"name" validate:"required"`
	Kind            types.TeamKind    `json:"kind,omitempty"`
	OwnerUserID     string            `json:"ownerUserId,omitempty"`
	BillingMode     types.BillingMode `json:"billingMode,omitempty"`
	DefaultCurrency string            `json:"defaultCurrency,omitempty"`
}

func (r *CreateTeamRequest) ToService(appID string) service.CreateTeamRequest {
	req := service.CreateTeamRequest{
		AppID:           appID,
		ExternalTeamID:  r.ExternalTeamID,
		Name:            r.Name,
		Kind:            r.Kind,
		BillingMode:     r.BillingMode,
		DefaultCurrency: r.DefaultCurrency,
	}
	if r.OwnerUserID != "" {
		owner := r.OwnerUserID
		req.OwnerUserID = &owner
	}
	return req
}

// WalletConfigRequest sets a team's auto top-up policy
type WalletConfigRequest struct {
	AutoTopUpEnabled bool  `json:"autoTopUpEnabled"`
	ThresholdMinor   int64 `json:"thresholdMinor" validate:"gte=0"`
	TopUpAmountMinor int64 `json:"topUpAmountMinor" validate:"gte=0"`
}
