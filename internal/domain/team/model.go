package team

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Team is an end-customer workspace within an app
type Team struct {
	ID               string            `db:"id" json:"id"`
	AppID            string            `db:"app_id" json:"app_id"`
	Name             string            `db:"name" json:"name"`
	Kind             types.TeamKind    `db:"kind" json:"kind"`
	OwnerUserID      *string           `db:"owner_user_id" json:"owner_user_id,omitempty"`
	DefaultCurrency  string            `db:"default_currency" json:"default_currency"`
	StripeCustomerID *string           `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	BillingMode      types.BillingMode `db:"billing_mode" json:"billing_mode"`
	// BillToID is the team's billing entity: a stable addressee for
	// monetary records that survives team rename.
	BillToID string `db:"bill_to_id" json:"bill_to_id"`
	types.BaseModel
}

func (t *Team) TableName() string {
	return "teams"
}

func (t *Team) Validate() error {
	if t.AppID == "" {
		return ierr.NewError("app_id is required").
			WithHint("app_id is required").
			Mark(ierr.ErrValidation)
	}
	if t.Name == "" {
		return ierr.NewError("team name is required").
			WithHint("Team name is required").
			Mark(ierr.ErrValidation)
	}
	if err := t.Kind.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if err := t.BillingMode.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingEntity is the bill-to record owned 1:1 by a team
type BillingEntity struct {
	ID     string `db:"id" json:"id"`
	Type   string `db:"type" json:"type"` // always TEAM today
	TeamID string `db:"team_id" json:"team_id"`
}

func (b *BillingEntity) TableName() string {
	return "billing_entities"
}

// ExternalRef binds an app's external team identifier to a local team,
// making team creation idempotent on (app_id, external_team_id).
type ExternalRef struct {
	AppID          string `db:"app_id" json:"app_id"`
	ExternalTeamID string `db:"external_team_id" json:"external_team_id"`
	TeamID         string `db:"team_id" json:"team_id"`
}

func (r *ExternalRef) TableName() string {
	return "external_team_refs"
}

// Member is a user's membership in a team. Removal is soft.
type Member struct {
	ID        string             `db:"id" json:"id"`
	TeamID    string             `db:"team_id" json:"team_id"`
	UserID    string             `db:"user_id" json:"user_id"`
	Role      types.MemberRole   `db:"role" json:"role"`
	Status    types.MemberStatus `db:"status" json:"status"`
	StartedAt time.Time          `db:"started_at" json:"started_at"`
	EndedAt   *time.Time         `db:"ended_at" json:"ended_at,omitempty"`
}

func (m *Member) TableName() string {
	return "team_members"
}

// WalletConfig holds a team's auto-top-up settings
type WalletConfig struct {
	AppID            string `db:"app_id" json:"app_id"`
	TeamID           string `db:"team_id" json:"team_id"`
	AutoTopUpEnabled bool   `db:"auto_topup_enabled" json:"auto_topup_enabled"`
	ThresholdMinor   int64  `db:"threshold_minor" json:"threshold_minor"`
	TopUpAmountMinor int64  `db:"topup_amount_minor" json:"topup_amount_minor"`
}

func (w *WalletConfig) TableName() string {
	return "wallet_configs"
}
