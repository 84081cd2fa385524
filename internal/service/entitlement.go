package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/cache"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// EntitlementResult is the effective entitlement view for one team in
// one app after merging bundle defaults, contract overrides, and the
// live subscription plan.
type EntitlementResult struct {
	Features      map[string]bool              `json:"features"`
	MeterPolicies map[string]types.MeterPolicy `json:"meter_policies"`
	BillingMode   types.BillingMode            `json:"billing_mode"`
	Billable      map[string]bool              `json:"billable"`
}

// EntitlementService resolves entitlements from stored state. The
// result is a pure function of the team's contract, bundle, overrides,
// and subscription; the cache is memoization only, invalidated by
// RefreshEntitlements.
type EntitlementService interface {
	Resolve(ctx context.Context, appID, teamID string) (*EntitlementResult, error)
	// RefreshEntitlements drops every cached view for the team. Contract
	// and subscription mutations call this.
	RefreshEntitlements(ctx context.Context, teamID string)
}

type entitlementService struct {
	ServiceParams
	cacheTTL time.Duration
}

func NewEntitlementService(params ServiceParams) EntitlementService {
	return &entitlementService{
		ServiceParams: params,
		cacheTTL:      5 * time.Minute,
	}
}

func (s *entitlementService) Resolve(ctx context.Context, appID, teamID string) (*EntitlementResult, error) {
	cacheKey := cache.GenerateKey(cache.PrefixEntitlement, teamID, appID)
	if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
		if result, ok := cached.(*EntitlementResult); ok {
			return result, nil
		}
	}

	t, err := s.TeamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if t.AppID != appID {
		return nil, ierr.NewError("team not found").
			WithHintf("Team %s does not belong to app %s", teamID, appID).
			Mark(ierr.ErrNotFound)
	}

	result := &EntitlementResult{
		Features:      map[string]bool{},
		MeterPolicies: map[string]types.MeterPolicy{},
		BillingMode:   t.BillingMode,
		Billable:      map[string]bool{},
	}

	// Enterprise contract layer: bundle defaults first, then the
	// contract's own overrides on top.
	if err := s.applyContract(ctx, appID, t.BillToID, result); err != nil {
		return nil, err
	}

	// Live subscription layer wins last.
	if err := s.applySubscription(ctx, teamID, result); err != nil {
		return nil, err
	}

	for meterKey, policy := range result.MeterPolicies {
		result.Billable[meterKey] = policy.OverageBilling != types.OverageBillingNone
	}

	s.Cache.Set(ctx, cacheKey, result, s.cacheTTL)
	return result, nil
}

func (s *entitlementService) applyContract(ctx context.Context, appID, billToID string, result *EntitlementResult) error {
	c, err := s.ContractRepo.GetActiveByBillTo(ctx, billToID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}

	bundleApp, err := s.BundleRepo.GetApp(ctx, c.BundleID, appID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	if bundleApp != nil {
		for flag, enabled := range bundleApp.DefaultFeatureFlags {
			result.Features[flag] = enabled
		}
	}

	policies, err := s.BundleRepo.ListMeterPolicies(ctx, c.BundleID, appID)
	if err != nil {
		return err
	}
	for _, p := range policies {
		result.MeterPolicies[p.MeterKey] = p.MeterPolicy
	}

	overrides, err := s.ContractRepo.ListOverrides(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if o.AppID != appID {
			continue
		}
		result.MeterPolicies[o.MeterKey] = o.MeterPolicy
	}
	return nil
}

func (s *entitlementService) applySubscription(ctx context.Context, teamID string, result *EntitlementResult) error {
	sub, err := s.SubscriptionRepo.GetActiveByTeam(ctx, teamID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}

	plan, err := s.CatalogRepo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	for flag, enabled := range plan.FeatureFlags {
		result.Features[flag] = enabled
	}
	return nil
}

func (s *entitlementService) RefreshEntitlements(ctx context.Context, teamID string) {
	s.Cache.DeleteByPrefix(ctx, cache.GenerateKey(cache.PrefixEntitlement, teamID))
	s.Logger.Debugw("entitlements refreshed", "team_id", teamID)
}
