package testutil

import (
	"context"
	"sync"

	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryTeamStore is an in-memory implementation of team.Repository
type InMemoryTeamStore struct {
	mu            sync.RWMutex
	teams         map[string]*team.Team
	externalRefs  map[string]string // app_id:external_team_id -> team_id
	members       map[string]*team.Member
	walletConfigs map[string]*team.WalletConfig
	clock         types.Clock
}

func NewInMemoryTeamStore(clock types.Clock) *InMemoryTeamStore {
	s := &InMemoryTeamStore{clock: clock}
	s.reset()
	return s
}

func (s *InMemoryTeamStore) reset() {
	s.teams = make(map[string]*team.Team)
	s.externalRefs = make(map[string]string)
	s.members = make(map[string]*team.Member)
	s.walletConfigs = make(map[string]*team.WalletConfig)
}

func refKey(appID, externalTeamID string) string {
	return appID + ":" + externalTeamID
}

func memberKey(teamID, userID string) string {
	return teamID + ":" + userID
}

func (s *InMemoryTeamStore) Create(ctx context.Context, t *team.Team, externalTeamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := refKey(t.AppID, externalTeamID)
	if _, exists := s.externalRefs[key]; exists {
		return ierr.NewError("team already exists").
			WithHint("A team with this external ID already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *t
	s.teams[t.ID] = &cp
	s.externalRefs[key] = t.ID
	return nil
}

func (s *InMemoryTeamStore) GetByID(ctx context.Context, id string) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, ierr.NewError("team not found").
			WithHintf("Team with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryTeamStore) GetByExternalRef(ctx context.Context, appID, externalTeamID string) (*team.Team, error) {
	s.mu.RLock()
	teamID, ok := s.externalRefs[refKey(appID, externalTeamID)]
	s.mu.RUnlock()
	if !ok {
		return nil, ierr.NewError("team not found").
			WithHintf("Team with external ID %s was not found", externalTeamID).
			Mark(ierr.ErrNotFound)
	}
	return s.GetByID(ctx, teamID)
}

func (s *InMemoryTeamStore) GetByBillTo(ctx context.Context, billToID string) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.teams {
		if t.BillToID == billToID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ierr.NewError("team not found").
		WithHintf("No team owns billing entity %s", billToID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryTeamStore) ClaimStripeCustomerID(ctx context.Context, teamID, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.teams[teamID]
	if !ok {
		return false, ierr.NewError("team not found").
			WithHintf("Team with ID %s was not found", teamID).
			Mark(ierr.ErrNotFound)
	}
	if t.StripeCustomerID != nil {
		return false, nil
	}
	t.StripeCustomerID = &customerID
	t.UpdatedAt = s.clock.Now()
	return true, nil
}

func (s *InMemoryTeamStore) UpsertMember(ctx context.Context, m *team.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	s.members[memberKey(m.TeamID, m.UserID)] = &cp
	return nil
}

func (s *InMemoryTeamStore) GetMember(ctx context.Context, teamID, userID string) (*team.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey(teamID, userID)]
	if !ok {
		return nil, ierr.NewError("member not found").
			WithHintf("User %s is not a member of team %s", userID, teamID).
			Mark(ierr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryTeamStore) SoftRemoveMember(ctx context.Context, teamID, userID string) (*team.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberKey(teamID, userID)]
	if !ok {
		return nil, ierr.NewError("member not found").
			WithHintf("User %s is not a member of team %s", userID, teamID).
			Mark(ierr.ErrNotFound)
	}
	if m.Status != types.MemberStatusRemoved {
		now := s.clock.Now()
		m.Status = types.MemberStatusRemoved
		m.EndedAt = &now
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryTeamStore) GetWalletConfig(ctx context.Context, appID, teamID string) (*team.WalletConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.walletConfigs[refKey(appID, teamID)]
	if !ok {
		return nil, ierr.NewError("wallet config not found").
			WithHintf("No wallet config for team %s", teamID).
			Mark(ierr.ErrNotFound)
	}
	cp := *cfg
	return &cp, nil
}

func (s *InMemoryTeamStore) UpsertWalletConfig(ctx context.Context, cfg *team.WalletConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cfg
	s.walletConfigs[refKey(cfg.AppID, cfg.TeamID)] = &cp
	return nil
}

func (s *InMemoryTeamStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
