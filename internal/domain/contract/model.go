package contract

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Contract binds a bill-to to a bundle and a pricing mode. At most one
// ACTIVE contract exists per bill-to.
type Contract struct {
	ID            string               `db:"id" json:"id"`
	BillToID      string               `db:"bill_to_id" json:"bill_to_id"`
	BundleID      string               `db:"bundle_id" json:"bundle_id"`
	Currency      string               `db:"currency" json:"currency"`
	BillingPeriod types.BillingPeriod  `db:"billing_period" json:"billing_period"`
	TermsDays     int                  `db:"terms_days" json:"terms_days"`
	PricingMode   types.PricingMode    `db:"pricing_mode" json:"pricing_mode"`
	StartsAt      time.Time            `db:"starts_at" json:"starts_at"`
	EndsAt        *time.Time           `db:"ends_at" json:"ends_at,omitempty"`
	Status        types.ContractStatus `db:"status" json:"status"`
	// BaseFeeMinor and MinCommitMinor back the FIXED and
	// MIN_COMMIT_TRUEUP pricing modes. Zero until commercials are set.
	BaseFeeMinor   int64 `db:"base_fee_minor" json:"base_fee_minor"`
	MinCommitMinor int64 `db:"min_commit_minor" json:"min_commit_minor"`
	types.BaseModel
}

func (c *Contract) TableName() string {
	return "contracts"
}

func (c *Contract) Validate() error {
	if c.BillToID == "" {
		return ierr.NewError("bill_to_id is required").
			WithHint("bill_to_id is required").
			Mark(ierr.ErrValidation)
	}
	if c.BundleID == "" {
		return ierr.NewError("bundle_id is required").
			WithHint("bundle_id is required").
			Mark(ierr.ErrValidation)
	}
	if c.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := c.BillingPeriod.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if err := c.PricingMode.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if err := c.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	if c.StartsAt.IsZero() {
		return ierr.NewError("starts_at is required").
			WithHint("starts_at is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Override replaces the bundle's default policy for one (app, meter)
// of this contract.
type Override struct {
	ID         string `db:"id" json:"id"`
	ContractID string `db:"contract_id" json:"contract_id"`
	AppID      string `db:"app_id" json:"app_id"`
	MeterKey   string `db:"meter_key" json:"meter_key"`
	types.MeterPolicy
}

func (o *Override) TableName() string {
	return "contract_overrides"
}
