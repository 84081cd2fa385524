package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/meterline/meterline/internal/domain/bundle"
	"github.com/meterline/meterline/internal/domain/contract"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryBundleStore is an in-memory implementation of
// bundle.Repository.
type InMemoryBundleStore struct {
	mu       sync.RWMutex
	bundles  map[string]*bundle.Bundle
	apps     map[string]*bundle.App         // bundle_id:app_id
	policies map[string]*bundle.MeterPolicy // bundle_id:app_id:meter_key
}

func NewInMemoryBundleStore() *InMemoryBundleStore {
	s := &InMemoryBundleStore{}
	s.reset()
	return s
}

func (s *InMemoryBundleStore) reset() {
	s.bundles = make(map[string]*bundle.Bundle)
	s.apps = make(map[string]*bundle.App)
	s.policies = make(map[string]*bundle.MeterPolicy)
}

func (s *InMemoryBundleStore) Create(ctx context.Context, b *bundle.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bundles {
		if existing.Code == b.Code {
			return ierr.NewError("bundle already exists").
				WithHintf("A bundle with code %s already exists", b.Code).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	cp := *b
	s.bundles[b.ID] = &cp
	return nil
}

func (s *InMemoryBundleStore) Update(ctx context.Context, b *bundle.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bundles[b.ID]; !ok {
		return ierr.NewError("bundle not found").
			WithHintf("Bundle with ID %s was not found", b.ID).
			Mark(ierr.ErrNotFound)
	}
	cp := *b
	s.bundles[b.ID] = &cp
	return nil
}

func (s *InMemoryBundleStore) GetByID(ctx context.Context, id string) (*bundle.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[id]
	if !ok {
		return nil, ierr.NewError("bundle not found").
			WithHintf("Bundle with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *InMemoryBundleStore) GetByCode(ctx context.Context, code string) (*bundle.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bundles {
		if b.Code == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ierr.NewError("bundle not found").
		WithHintf("Bundle with code %s was not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryBundleStore) UpsertApp(ctx context.Context, a *bundle.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.apps[a.BundleID+":"+a.AppID] = &cp
	return nil
}

func (s *InMemoryBundleStore) GetApp(ctx context.Context, bundleID, appID string) (*bundle.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[bundleID+":"+appID]
	if !ok {
		return nil, ierr.NewError("bundle app not found").
			WithHintf("Bundle %s does not include app %s", bundleID, appID).
			Mark(ierr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryBundleStore) UpsertMeterPolicy(ctx context.Context, p *bundle.MeterPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.policies[p.BundleID+":"+p.AppID+":"+p.MeterKey] = &cp
	return nil
}

func (s *InMemoryBundleStore) ListMeterPolicies(ctx context.Context, bundleID, appID string) ([]*bundle.MeterPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*bundle.MeterPolicy{}
	for _, p := range s.policies {
		if p.BundleID == bundleID && p.AppID == appID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeterKey < out[j].MeterKey })
	return out, nil
}

func (s *InMemoryBundleStore) ListAllMeterPolicies(ctx context.Context, bundleID string) ([]*bundle.MeterPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*bundle.MeterPolicy{}
	for _, p := range s.policies {
		if p.BundleID == bundleID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppID != out[j].AppID {
			return out[i].AppID < out[j].AppID
		}
		return out[i].MeterKey < out[j].MeterKey
	})
	return out, nil
}

func (s *InMemoryBundleStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemoryContractStore is an in-memory implementation of
// contract.Repository.
type InMemoryContractStore struct {
	mu        sync.RWMutex
	contracts map[string]*contract.Contract
	overrides map[string][]*contract.Override
}

func NewInMemoryContractStore() *InMemoryContractStore {
	s := &InMemoryContractStore{}
	s.reset()
	return s
}

func (s *InMemoryContractStore) reset() {
	s.contracts = make(map[string]*contract.Contract)
	s.overrides = make(map[string][]*contract.Override)
}

func (s *InMemoryContractStore) activeConflict(c *contract.Contract) error {
	for _, existing := range s.contracts {
		if existing.ID != c.ID &&
			existing.BillToID == c.BillToID &&
			existing.Status == types.ContractStatusActive {
			return ierr.NewError("active contract already exists").
				WithHintf("Billing entity %s already has an active contract", c.BillToID).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return nil
}

func (s *InMemoryContractStore) Create(ctx context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status == types.ContractStatusActive {
		if err := s.activeConflict(c); err != nil {
			return err
		}
	}
	cp := *c
	s.contracts[c.ID] = &cp
	return nil
}

func (s *InMemoryContractStore) GetByID(ctx context.Context, id string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ierr.NewError("contract not found").
			WithHintf("Contract with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryContractStore) Update(ctx context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[c.ID]; !ok {
		return ierr.NewError("contract not found").
			WithHintf("Contract with ID %s was not found", c.ID).
			Mark(ierr.ErrNotFound)
	}
	if c.Status == types.ContractStatusActive {
		if err := s.activeConflict(c); err != nil {
			return err
		}
	}
	cp := *c
	s.contracts[c.ID] = &cp
	return nil
}

func (s *InMemoryContractStore) GetActiveByBillTo(ctx context.Context, billToID string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contracts {
		if c.BillToID == billToID && c.Status == types.ContractStatusActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ierr.NewError("contract not found").
		WithHintf("Billing entity %s has no active contract", billToID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryContractStore) ListActive(ctx context.Context) ([]*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*contract.Contract{}
	for _, c := range s.contracts {
		if c.Status == types.ContractStatusActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryContractStore) ReplaceOverrides(ctx context.Context, contractID string, overrides []*contract.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make([]*contract.Override, 0, len(overrides))
	for _, o := range overrides {
		cp := *o
		replaced = append(replaced, &cp)
	}
	s.overrides[contractID] = replaced
	return nil
}

func (s *InMemoryContractStore) ListOverrides(ctx context.Context, contractID string) ([]*contract.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*contract.Override{}
	for _, o := range s.overrides[contractID] {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppID != out[j].AppID {
			return out[i].AppID < out[j].AppID
		}
		return out[i].MeterKey < out[j].MeterKey
	})
	return out, nil
}

func (s *InMemoryContractStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
