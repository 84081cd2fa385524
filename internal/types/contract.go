package types

import (
	"fmt"

	"github.com/samber/lo"
)

// BundleStatus represents the lifecycle status of a bundle
type BundleStatus string

const (
	BundleStatusActive   BundleStatus = "ACTIVE"
	BundleStatusArchived BundleStatus = "ARCHIVED"
)

func (s BundleStatus) String() string {
	return string(s)
}

func (s BundleStatus) Validate() error {
	allowed := []BundleStatus{
		BundleStatusActive,
		BundleStatusArchived,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid bundle status: %s", s)
	}
	return nil
}

// ContractStatus represents the lifecycle status of an enterprise contract
type ContractStatus string

const (
	ContractStatusDraft  ContractStatus = "DRAFT"
	ContractStatusActive ContractStatus = "ACTIVE"
	ContractStatusPaused ContractStatus = "PAUSED"
	ContractStatusEnded  ContractStatus = "ENDED"
)

func (s ContractStatus) String() string {
	return string(s)
}

func (s ContractStatus) Validate() error {
	allowed := []ContractStatus{
		ContractStatusDraft,
		ContractStatusActive,
		ContractStatusPaused,
		ContractStatusEnded,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid contract status: %s", s)
	}
	return nil
}

// BillingPeriod is the cadence at which contract periods close
type BillingPeriod string

const (
	BillingPeriodMonthly   BillingPeriod = "MONTHLY"
	BillingPeriodQuarterly BillingPeriod = "QUARTERLY"
)

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BillingPeriodMonthly,
		BillingPeriodQuarterly,
	}
	if !lo.Contains(allowed, p) {
		return fmt.Errorf("invalid billing period: %s", p)
	}
	return nil
}

// Months returns the number of calendar months in one billing period
func (p BillingPeriod) Months() int {
	if p == BillingPeriodQuarterly {
		return 3
	}
	return 1
}

// PricingMode is the contract-level strategy for turning period usage
// into invoice lines
type PricingMode string

const (
	PricingModeFixed             PricingMode = "FIXED"
	PricingModeFixedPlusTrueup   PricingMode = "FIXED_PLUS_TRUEUP"
	PricingModeMinCommitTrueup   PricingMode = "MIN_COMMIT_TRUEUP"
	PricingModeCustomInvoiceOnly PricingMode = "CUSTOM_INVOICE_ONLY"
)

func (m PricingMode) String() string {
	return string(m)
}

func (m PricingMode) Validate() error {
	allowed := []PricingMode{
		PricingModeFixed,
		PricingModeFixedPlusTrueup,
		PricingModeMinCommitTrueup,
		PricingModeCustomInvoiceOnly,
	}
	if !lo.Contains(allowed, m) {
		return fmt.Errorf("invalid pricing mode: %s", m)
	}
	return nil
}

// LimitType is how a meter policy bounds usage
type LimitType string

const (
	LimitTypeNone      LimitType = "NONE"
	LimitTypeIncluded  LimitType = "INCLUDED"
	LimitTypeUnlimited LimitType = "UNLIMITED"
	LimitTypeHardCap   LimitType = "HARD_CAP"
)

func (t LimitType) String() string {
	return string(t)
}

func (t LimitType) Validate() error {
	allowed := []LimitType{
		LimitTypeNone,
		LimitTypeIncluded,
		LimitTypeUnlimited,
		LimitTypeHardCap,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid limit type: %s", t)
	}
	return nil
}

// Enforcement is what happens when a meter policy limit is crossed
type Enforcement string

const (
	EnforcementNone Enforcement = "NONE"
	EnforcementSoft Enforcement = "SOFT"
	EnforcementHard Enforcement = "HARD"
)

func (e Enforcement) String() string {
	return string(e)
}

func (e Enforcement) Validate() error {
	allowed := []Enforcement{
		EnforcementNone,
		EnforcementSoft,
		EnforcementHard,
	}
	if !lo.Contains(allowed, e) {
		return fmt.Errorf("invalid enforcement: %s", e)
	}
	return nil
}

// OverageBilling is how usage beyond the included amount is billed
type OverageBilling string

const (
	OverageBillingNone    OverageBilling = "NONE"
	OverageBillingPerUnit OverageBilling = "PER_UNIT"
	OverageBillingTiered  OverageBilling = "TIERED"
	OverageBillingCustom  OverageBilling = "CUSTOM"
)

func (o OverageBilling) String() string {
	return string(o)
}

func (o OverageBilling) Validate() error {
	allowed := []OverageBilling{
		OverageBillingNone,
		OverageBillingPerUnit,
		OverageBillingTiered,
		OverageBillingCustom,
	}
	if !lo.Contains(allowed, o) {
		return fmt.Errorf("invalid overage billing: %s", o)
	}
	return nil
}

// MeterPolicy is the policy shape shared by bundle defaults and contract
// overrides, and surfaced by entitlement resolution.
type MeterPolicy struct {
	LimitType      LimitType      `db:"limit_type" json:"limit_type"`
	IncludedAmount *int64         `db:"included_amount" json:"included_amount,omitempty"`
	Enforcement    Enforcement    `db:"enforcement" json:"enforcement"`
	OverageBilling OverageBilling `db:"overage_billing" json:"overage_billing"`
}

func (p MeterPolicy) Validate() error {
	if err := p.LimitType.Validate(); err != nil {
		return err
	}
	if err := p.Enforcement.Validate(); err != nil {
		return err
	}
	if err := p.OverageBilling.Validate(); err != nil {
		return err
	}
	if p.LimitType == LimitTypeIncluded && p.IncludedAmount == nil {
		return fmt.Errorf("included amount is required for limit type %s", LimitTypeIncluded)
	}
	return nil
}

// Included returns the included amount, zero when unset
func (p MeterPolicy) Included() int64 {
	if p.IncludedAmount == nil {
		return 0
	}
	return *p.IncludedAmount
}
