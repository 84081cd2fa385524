package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/bundle"
	"github.com/meterline/meterline/internal/domain/contract"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// CreateBundleRequest creates a bundle with optional app attachments
type CreateBundleRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// UpdateBundleRequest patches mutable bundle fields; nil means keep
type UpdateBundleRequest struct {
	Name   *string             `json:"name,omitempty"`
	Status *types.BundleStatus `json:"status,omitempty"`
}

// AttachBundleAppRequest binds a bundle to an app with its default flags
type AttachBundleAppRequest struct {
	BundleID            string             `json:"bundle_id" validate:"required"`
	AppID               string             `json:"app_id" validate:"required"`
	DefaultFeatureFlags types.FeatureFlags `json:"default_feature_flags"`
}

// UpsertBundlePolicyRequest sets the bundle default policy for one meter
type UpsertBundlePolicyRequest struct {
	BundleID string            `json:"bundle_id" validate:"required"`
	AppID    string            `json:"app_id" validate:"required"`
	MeterKey string            `json:"meter_key" validate:"required"`
	Policy   types.MeterPolicy `json:"policy"`
}

// CreateContractRequest creates a contract for a bill-to
type CreateContractRequest struct {
	BillToID       string               `json:"bill_to_id" validate:"required"`
	BundleID       string               `json:"bundle_id" validate:"required"`
	Currency       string               `json:"currency" validate:"required"`
	BillingPeriod  types.BillingPeriod  `json:"billing_period" validate:"required"`
	TermsDays      int                  `json:"terms_days"`
	PricingMode    types.PricingMode    `json:"pricing_mode" validate:"required"`
	StartsAt       time.Time            `json:"starts_at" validate:"required"`
	EndsAt         *time.Time           `json:"ends_at,omitempty"`
	Status         types.ContractStatus `json:"status"`
	BaseFeeMinor   int64                `json:"base_fee_minor"`
	MinCommitMinor int64                `json:"min_commit_minor"`
}

// OverrideRequest is one contract override entry
type OverrideRequest struct {
	AppID    string            `json:"app_id" validate:"required"`
	MeterKey string            `json:"meter_key" validate:"required"`
	Policy   types.MeterPolicy `json:"policy"`
}

// ContractService owns bundles, contracts, and overrides. Every
// contract mutation refreshes the owning team's entitlements.
type ContractService interface {
	CreateBundle(ctx context.Context, req CreateBundleRequest) (*bundle.Bundle, error)
	GetBundle(ctx context.Context, id string) (*bundle.Bundle, error)
	UpdateBundle(ctx context.Context, id string, req UpdateBundleRequest) (*bundle.Bundle, error)
	AttachBundleApp(ctx context.Context, req AttachBundleAppRequest) (*bundle.App, error)
	UpsertBundlePolicy(ctx context.Context, req UpsertBundlePolicyRequest) (*bundle.MeterPolicy, error)

	CreateContract(ctx context.Context, req CreateContractRequest) (*contract.Contract, error)
	GetContract(ctx context.Context, id string) (*contract.Contract, error)
	// UpdateContractStatus transitions a contract; activation fails with
	// a conflict when the bill-to already has another ACTIVE contract.
	UpdateContractStatus(ctx context.Context, id string, status types.ContractStatus) (*contract.Contract, error)
	// ReplaceOverrides swaps the full override set in one transaction;
	// an empty list clears all.
	ReplaceOverrides(ctx context.Context, contractID string, overrides []OverrideRequest) ([]*contract.Override, error)
	ListOverrides(ctx context.Context, contractID string) ([]*contract.Override, error)
}

type contractService struct {
	ServiceParams
	entitlements EntitlementService
}

func NewContractService(params ServiceParams, entitlements EntitlementService) ContractService {
	return &contractService{ServiceParams: params, entitlements: entitlements}
}

func (s *contractService) CreateBundle(ctx context.Context, req CreateBundleRequest) (*bundle.Bundle, error) {
	b := &bundle.Bundle{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BUNDLE),
		Code:      req.Code,
		Name:      req.Name,
		Status:    types.BundleStatusActive,
		BaseModel: types.GetDefaultBaseModel(s.Clock.Now()),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.BundleRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *contractService) GetBundle(ctx context.Context, id string) (*bundle.Bundle, error) {
	return s.BundleRepo.GetByID(ctx, id)
}

func (s *contractService) UpdateBundle(ctx context.Context, id string, req UpdateBundleRequest) (*bundle.Bundle, error) {
	b, err := s.BundleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Status != nil {
		if err := req.Status.Validate(); err != nil {
			return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
		}
		b.Status = *req.Status
	}
	b.UpdatedAt = s.Clock.Now()
	if err := s.BundleRepo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *contractService) AttachBundleApp(ctx context.Context, req AttachBundleAppRequest) (*bundle.App, error) {
	if _, err := s.BundleRepo.GetByID(ctx, req.BundleID); err != nil {
		return nil, err
	}
	flags := req.DefaultFeatureFlags
	if flags == nil {
		flags = types.FeatureFlags{}
	}
	a := &bundle.App{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BUNDLE),
		BundleID:            req.BundleID,
		AppID:               req.AppID,
		DefaultFeatureFlags: flags,
	}
	if err := s.BundleRepo.UpsertApp(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *contractService) UpsertBundlePolicy(ctx context.Context, req UpsertBundlePolicyRequest) (*bundle.MeterPolicy, error) {
	if err := req.Policy.Validate(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	p := &bundle.MeterPolicy{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_METER_POLICY),
		BundleID:    req.BundleID,
		AppID:       req.AppID,
		MeterKey:    req.MeterKey,
		MeterPolicy: req.Policy,
	}
	if err := s.BundleRepo.UpsertMeterPolicy(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *contractService) CreateContract(ctx context.Context, req CreateContractRequest) (*contract.Contract, error) {
	if _, err := s.BundleRepo.GetByID(ctx, req.BundleID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = types.ContractStatusDraft
	}
	c := &contract.Contract{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CONTRACT),
		BillToID:       req.BillToID,
		BundleID:       req.BundleID,
		Currency:       req.Currency,
		BillingPeriod:  req.BillingPeriod,
		TermsDays:      req.TermsDays,
		PricingMode:    req.PricingMode,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Status:         status,
		BaseFeeMinor:   req.BaseFeeMinor,
		MinCommitMinor: req.MinCommitMinor,
		BaseModel:      types.GetDefaultBaseModel(s.Clock.Now()),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ContractRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.refreshForBillTo(ctx, c.BillToID)
	return c, nil
}

func (s *contractService) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	return s.ContractRepo.GetByID(ctx, id)
}

func (s *contractService) UpdateContractStatus(ctx context.Context, id string, status types.ContractStatus) (*contract.Contract, error) {
	if err := status.Validate(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
	}

	c, err := s.ContractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = status
	c.UpdatedAt = s.Clock.Now()
	if err := s.ContractRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.refreshForBillTo(ctx, c.BillToID)
	return c, nil
}

func (s *contractService) ReplaceOverrides(ctx context.Context, contractID string, overrides []OverrideRequest) ([]*contract.Override, error) {
	c, err := s.ContractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}

	rows := make([]*contract.Override, 0, len(overrides))
	for _, req := range overrides {
		if err := req.Policy.Validate(); err != nil {
			return nil, ierr.WithError(err).Mark(ierr.ErrValidation)
		}
		rows = append(rows, &contract.Override{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CONTRACT_OVERRIDE),
			ContractID:  contractID,
			AppID:       req.AppID,
			MeterKey:    req.MeterKey,
			MeterPolicy: req.Policy,
		})
	}

	if err := s.ContractRepo.ReplaceOverrides(ctx, contractID, rows); err != nil {
		return nil, err
	}

	s.refreshForBillTo(ctx, c.BillToID)
	return rows, nil
}

func (s *contractService) ListOverrides(ctx context.Context, contractID string) ([]*contract.Override, error) {
	return s.ContractRepo.ListOverrides(ctx, contractID)
}

// refreshForBillTo drops cached entitlements for the team owning a
// bill-to. A missing team only means nothing to refresh yet.
func (s *contractService) refreshForBillTo(ctx context.Context, billToID string) {
	t, err := s.TeamRepo.GetByBillTo(ctx, billToID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			s.Logger.Warnw("entitlement refresh lookup failed", "bill_to_id", billToID, "error", err)
		}
		return
	}
	s.entitlements.RefreshEntitlements(ctx, t.ID)
}
