package subscription

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/types"
)

// Subscription is the local mirror of a gateway subscription. At most
// one ACTIVE subscription exists per team.
type Subscription struct {
	ID                    string                   `db:"id" json:"id"`
	TeamID                string                   `db:"team_id" json:"team_id"`
	GatewaySubscriptionID string                   `db:"gateway_subscription_id" json:"gateway_subscription_id"`
	Status                types.SubscriptionStatus `db:"status" json:"status"`
	PlanID                string                   `db:"plan_id" json:"plan_id"`
	CurrentPeriodStart    time.Time                `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd      time.Time                `db:"current_period_end" json:"current_period_end"`
	SeatsQuantity         int64                    `db:"seats_quantity" json:"seats_quantity"`
	types.BaseModel
}

func (s *Subscription) TableName() string {
	return "team_subscriptions"
}

// Repository defines persistence for gateway-mirrored subscriptions
type Repository interface {
	// Upsert creates or replaces the record keyed by the gateway
	// subscription id.
	Upsert(ctx context.Context, s *Subscription) error
	GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*Subscription, error)
	GetActiveByTeam(ctx context.Context, teamID string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
}
