package bundle

import "context"

// Repository defines persistence for bundles, their app attachments,
// and default meter policies.
type Repository interface {
	// Create inserts a bundle; a duplicate code surfaces as a conflict.
	Create(ctx context.Context, b *Bundle) error
	Update(ctx context.Context, b *Bundle) error
	GetByID(ctx context.Context, id string) (*Bundle, error)
	GetByCode(ctx context.Context, code string) (*Bundle, error)

	UpsertApp(ctx context.Context, a *App) error
	GetApp(ctx context.Context, bundleID, appID string) (*App, error)

	UpsertMeterPolicy(ctx context.Context, p *MeterPolicy) error
	ListMeterPolicies(ctx context.Context, bundleID, appID string) ([]*MeterPolicy, error)
	ListAllMeterPolicies(ctx context.Context, bundleID string) ([]*MeterPolicy, error)
}
