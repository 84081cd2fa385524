package team

import "context"

// Repository defines persistence for teams, billing entities, external
// references, members, and wallet configs.
type Repository interface {
	// Create inserts the team, its billing entity, and the external
	// reference in one transaction. A uniqueness violation on
	// (app_id, external_team_id) is the idempotent-creation signal.
	Create(ctx context.Context, t *Team, externalTeamID string) error
	GetByID(ctx context.Context, id string) (*Team, error)
	GetByExternalRef(ctx context.Context, appID, externalTeamID string) (*Team, error)
	GetByBillTo(ctx context.Context, billToID string) (*Team, error)

	// ClaimStripeCustomerID performs the optimistic single-row update
	// UPDATE teams SET stripe_customer_id=? WHERE id=? AND stripe_customer_id IS NULL
	// and reports whether this caller won the race.
	ClaimStripeCustomerID(ctx context.Context, teamID, customerID string) (bool, error)

	UpsertMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, teamID, userID string) (*Member, error)
	// SoftRemoveMember sets status REMOVED and ended_at, preserving
	// history. Removing a removed member is a no-op.
	SoftRemoveMember(ctx context.Context, teamID, userID string) (*Member, error)

	GetWalletConfig(ctx context.Context, appID, teamID string) (*WalletConfig, error)
	UpsertWalletConfig(ctx context.Context, cfg *WalletConfig) error
}
