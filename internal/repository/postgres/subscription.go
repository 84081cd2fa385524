package postgres

import (
	"context"
	"database/sql"

	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	pg "github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type subscriptionRepository struct {
	db     *pg.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *pg.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

const selectSubscription = `
	SELECT id, team_id, gateway_subscription_id, status, plan_id,
	       current_period_start, current_period_end, seats_quantity, created_at, updated_at
	FROM team_subscriptions`

func (r *subscriptionRepository) Upsert(ctx context.Context, s *subscription.Subscription) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		INSERT INTO team_subscriptions (id, team_id, gateway_subscription_id, status, plan_id,
		                                current_period_start, current_period_end, seats_quantity,
		                                created_at, updated_at)
		VALUES (:id, :team_id, :gateway_subscription_id, :status, :plan_id,
		        :current_period_start, :current_period_end, :seats_quantity,
		        :created_at, :updated_at)
		ON CONFLICT (gateway_subscription_id) DO UPDATE
		SET status = EXCLUDED.status,
		    plan_id = EXCLUDED.plan_id,
		    current_period_start = EXCLUDED.current_period_start,
		    current_period_end = EXCLUDED.current_period_end,
		    seats_quantity = EXCLUDED.seats_quantity,
		    updated_at = EXCLUDED.updated_at`, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*subscription.Subscription, error) {
	q := r.db.GetQuerier(ctx)

	var s subscription.Subscription
	err := q.GetContext(ctx, &s, selectSubscription+` WHERE gateway_subscription_id = $1`, gatewaySubscriptionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription %s was not found", gatewaySubscriptionID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetActiveByTeam(ctx context.Context, teamID string) (*subscription.Subscription, error) {
	q := r.db.GetQuerier(ctx)

	var s subscription.Subscription
	err := q.GetContext(ctx, &s, selectSubscription+`
		WHERE team_id = $1 AND status = $2
		ORDER BY updated_at DESC LIMIT 1`, teamID, types.SubscriptionStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Team %s has no active subscription", teamID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	q := r.db.GetQuerier(ctx)

	_, err := q.NamedExecContext(ctx, `
		UPDATE team_subscriptions
		SET status = :status,
		    current_period_start = :current_period_start,
		    current_period_end = :current_period_end,
		    seats_quantity = :seats_quantity,
		    updated_at = :updated_at
		WHERE id = :id`, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
