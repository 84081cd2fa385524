package catalog

import "context"

// Repository defines persistence for plans, addons, and gateway
// product bindings.
type Repository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlanByID(ctx context.Context, id string) (*Plan, error)
	GetPlanByCode(ctx context.Context, appID, code string) (*Plan, error)

	CreateAddon(ctx context.Context, a *Addon) error
	GetAddonByCode(ctx context.Context, appID, code string) (*Addon, error)

	CreateProductMap(ctx context.Context, m *ProductMap) error
	ListProductMapsForPlan(ctx context.Context, planID string) ([]*ProductMap, error)
}
