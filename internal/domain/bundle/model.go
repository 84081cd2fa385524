package bundle

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Bundle is a catalog of default feature flags and meter policies that
// enterprise contracts attach to.
type Bundle struct {
	ID     string             `db:"id" json:"id"`
	Code   string             `db:"code" json:"code"`
	Name   string             `db:"name" json:"name"`
	Status types.BundleStatus `db:"status" json:"status"`
	types.BaseModel
}

func (b *Bundle) TableName() string {
	return "bundles"
}

func (b *Bundle) Validate() error {
	if b.Code == "" {
		return ierr.NewError("bundle code is required").
			WithHint("Bundle code is required").
			Mark(ierr.ErrValidation)
	}
	if b.Name == "" {
		return ierr.NewError("bundle name is required").
			WithHint("Bundle name is required").
			Mark(ierr.ErrValidation)
	}
	if err := b.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

// App attaches a bundle to an application with default feature flags
type App struct {
	ID                  string             `db:"id" json:"id"`
	BundleID            string             `db:"bundle_id" json:"bundle_id"`
	AppID               string             `db:"app_id" json:"app_id"`
	DefaultFeatureFlags types.FeatureFlags `db:"default_feature_flags" json:"default_feature_flags"`
}

func (a *App) TableName() string {
	return "bundle_apps"
}

// MeterPolicy is the bundle-level default policy for one meter of one
// app. Unique on (bundle_id, app_id, meter_key).
type MeterPolicy struct {
	ID       string `db:"id" json:"id"`
	BundleID string `db:"bundle_id" json:"bundle_id"`
	AppID    string `db:"app_id" json:"app_id"`
	MeterKey string `db:"meter_key" json:"meter_key"`
	types.MeterPolicy
}

func (p *MeterPolicy) TableName() string {
	return "bundle_meter_policies"
}
