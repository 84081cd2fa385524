package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/meterline/meterline/internal/domain/app"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryAppStore is an in-memory implementation of app.Repository
type InMemoryAppStore struct {
	mu      sync.RWMutex
	apps    map[string]*app.App
	secrets map[string]*app.Secret // keyed by kid
	clock   types.Clock
}

func NewInMemoryAppStore(clock types.Clock) *InMemoryAppStore {
	return &InMemoryAppStore{
		apps:    make(map[string]*app.App),
		secrets: make(map[string]*app.Secret),
		clock:   clock,
	}
}

func (s *InMemoryAppStore) CreateApp(ctx context.Context, a *app.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[a.ID]; exists {
		return ierr.NewError("app already exists").
			WithHint("An app with this ID already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *a
	s.apps[a.ID] = &cp
	return nil
}

func (s *InMemoryAppStore) GetApp(ctx context.Context, id string) (*app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok {
		return nil, ierr.NewError("app not found").
			WithHintf("App with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryAppStore) CreateSecret(ctx context.Context, sec *app.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.secrets[sec.Kid]; exists {
		return ierr.NewError("secret already exists").
			WithHint("A secret with this key ID already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *sec
	s.secrets[sec.Kid] = &cp
	return nil
}

func (s *InMemoryAppStore) GetSecretByKid(ctx context.Context, kid string) (*app.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.secrets[kid]
	if !ok {
		return nil, ierr.NewError("secret not found").
			WithHintf("Secret with key ID %s was not found", kid).
			Mark(ierr.ErrNotFound)
	}
	cp := *sec
	return &cp, nil
}

func (s *InMemoryAppStore) ListSecrets(ctx context.Context, appID string) ([]*app.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*app.Secret{}
	for _, sec := range s.secrets {
		if sec.AppID == appID {
			cp := *sec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryAppStore) RevokeSecret(ctx context.Context, appID, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.secrets[kid]
	if !ok || sec.AppID != appID {
		return ierr.NewError("secret not found").
			WithHintf("Secret with key ID %s was not found", kid).
			Mark(ierr.ErrNotFound)
	}
	if sec.Status == types.SecretStatusRevoked {
		return nil
	}
	now := s.clock.Now()
	sec.Status = types.SecretStatusRevoked
	sec.RevokedAt = &now
	return nil
}

func (s *InMemoryAppStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = make(map[string]*app.App)
	s.secrets = make(map[string]*app.Secret)
}

// InMemoryReplayStore is an in-memory implementation of
// auth.ReplayRepository.
type InMemoryReplayStore struct {
	mu   sync.Mutex
	jtis map[string]time.Time
}

func NewInMemoryReplayStore() *InMemoryReplayStore {
	return &InMemoryReplayStore{jtis: make(map[string]time.Time)}
}

func (s *InMemoryReplayStore) Insert(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jtis[jti]; exists {
		return ierr.NewError("jti already used").
			WithHint("Token has already been used").
			Mark(ierr.ErrAlreadyExists)
	}
	s.jtis[jti] = expiresAt
	return nil
}

func (s *InMemoryReplayStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, exp := range s.jtis {
		if exp.Before(before) {
			delete(s.jtis, jti)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryReplayStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jtis = make(map[string]time.Time)
}
