package catalog

import (
	"github.com/meterline/meterline/internal/types"
)

// Plan is a per-app catalog entry keyed by (app_id, code)
type Plan struct {
	ID           string             `db:"id" json:"id"`
	AppID        string             `db:"app_id" json:"app_id"`
	Code         string             `db:"code" json:"code"`
	Name         string             `db:"name" json:"name"`
	FeatureFlags types.FeatureFlags `db:"feature_flags" json:"feature_flags"`
	types.BaseModel
}

func (p *Plan) TableName() string {
	return "plans"
}

// Addon is a per-app optional catalog entry keyed by (app_id, code)
type Addon struct {
	ID    string `db:"id" json:"id"`
	AppID string `db:"app_id" json:"app_id"`
	Code  string `db:"code" json:"code"`
	Name  string `db:"name" json:"name"`
	types.BaseModel
}

func (a *Addon) TableName() string {
	return "addons"
}

// ProductMap binds a plan or addon to gateway product and price ids,
// discriminated by kind (BASE, SEAT, ADDON).
type ProductMap struct {
	ID               string               `db:"id" json:"id"`
	PlanID           *string              `db:"plan_id" json:"plan_id,omitempty"`
	AddonID          *string              `db:"addon_id" json:"addon_id,omitempty"`
	Kind             types.ProductMapKind `db:"kind" json:"kind"`
	GatewayProductID string               `db:"gateway_product_id" json:"gateway_product_id"`
	GatewayPriceID   string               `db:"gateway_price_id" json:"gateway_price_id"`
}

func (m *ProductMap) TableName() string {
	return "stripe_product_maps"
}
