package testutil

import (
	"context"
	"sync"

	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryCatalogStore is an in-memory implementation of
// catalog.Repository.
type InMemoryCatalogStore struct {
	mu          sync.RWMutex
	plans       map[string]*catalog.Plan
	addons      map[string]*catalog.Addon
	productMaps map[string]*catalog.ProductMap
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	s := &InMemoryCatalogStore{}
	s.reset()
	return s
}

func (s *InMemoryCatalogStore) reset() {
	s.plans = make(map[string]*catalog.Plan)
	s.addons = make(map[string]*catalog.Addon)
	s.productMaps = make(map[string]*catalog.ProductMap)
}

func (s *InMemoryCatalogStore) CreatePlan(ctx context.Context, p *catalog.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.plans {
		if existing.AppID == p.AppID && existing.Code == p.Code {
			return ierr.NewError("plan already exists").
				WithHintf("A plan with code %s already exists", p.Code).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *InMemoryCatalogStore) GetPlanByID(ctx context.Context, id string) (*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return nil, ierr.NewError("plan not found").
			WithHintf("Plan with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryCatalogStore) GetPlanByCode(ctx context.Context, appID, code string) (*catalog.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.plans {
		if p.AppID == appID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ierr.NewError("plan not found").
		WithHintf("Plan with code %s was not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) CreateAddon(ctx context.Context, a *catalog.Addon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.addons {
		if existing.AppID == a.AppID && existing.Code == a.Code {
			return ierr.NewError("addon already exists").
				WithHintf("An addon with code %s already exists", a.Code).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	cp := *a
	s.addons[a.ID] = &cp
	return nil
}

func (s *InMemoryCatalogStore) GetAddonByCode(ctx context.Context, appID, code string) (*catalog.Addon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.addons {
		if a.AppID == appID && a.Code == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ierr.NewError("addon not found").
		WithHintf("Addon with code %s was not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCatalogStore) CreateProductMap(ctx context.Context, m *catalog.ProductMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	s.productMaps[m.ID] = &cp
	return nil
}

func (s *InMemoryCatalogStore) ListProductMapsForPlan(ctx context.Context, planID string) ([]*catalog.ProductMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*catalog.ProductMap{}
	for _, m := range s.productMaps {
		if m.PlanID != nil && *m.PlanID == planID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryCatalogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemorySubscriptionStore is an in-memory implementation of
// subscription.Repository.
type InMemorySubscriptionStore struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription.Subscription // keyed by gateway id
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subscriptions: make(map[string]*subscription.Subscription),
	}
}

func (s *InMemorySubscriptionStore) Upsert(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	if existing, ok := s.subscriptions[sub.GatewaySubscriptionID]; ok {
		cp.ID = existing.ID
		cp.CreatedAt = existing.CreatedAt
	}
	s.subscriptions[sub.GatewaySubscriptionID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) GetByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[gatewaySubscriptionID]
	if !ok {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", gatewaySubscriptionID).
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemorySubscriptionStore) GetActiveByTeam(ctx context.Context, teamID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.TeamID == teamID && sub.Status == types.SubscriptionStatusActive {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHintf("Team %s has no active subscription", teamID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscriptions[sub.GatewaySubscriptionID]
	if !ok {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", sub.GatewaySubscriptionID).
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	cp.CreatedAt = existing.CreatedAt
	s.subscriptions[sub.GatewaySubscriptionID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = make(map[string]*subscription.Subscription)
}
