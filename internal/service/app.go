package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/meterline/meterline/internal/domain/app"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// MintSecretResponse carries the plaintext secret exactly once, at
// creation time. Only the encrypted form is stored.
type MintSecretResponse struct {
	Kid    string `json:"kid"`
	Secret string `json:"secret"`
}

// AppService owns tenant apps and their signing secrets
type AppService interface {
	CreateApp(ctx context.Context, name string) (*app.App, error)
	GetApp(ctx context.Context, id string) (*app.App, error)
	// MintSecret generates a fresh signing secret for the app. The
	// plaintext in the response is never recoverable afterwards.
	MintSecret(ctx context.Context, appID string) (*MintSecretResponse, error)
	ListSecrets(ctx context.Context, appID string) ([]*app.Secret, error)
	// RevokeSecret is idempotent; revoking an already revoked key
	// succeeds without effect.
	RevokeSecret(ctx context.Context, appID, kid string) error
}

type appService struct {
	ServiceParams
}

func NewAppService(params ServiceParams) AppService {
	return &appService{ServiceParams: params}
}

func (s *appService) CreateApp(ctx context.Context, name string) (*app.App, error) {
	a := &app.App{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APP),
		Name:      name,
		Status:    types.AppStatusActive,
		BaseModel: types.GetDefaultBaseModel(s.Clock.Now()),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.AppRepo.CreateApp(ctx, a); err != nil {
		return nil, err
	}

	s.Logger.Infow("app created", "app_id", a.ID, "name", a.Name)
	return a, nil
}

func (s *appService) GetApp(ctx context.Context, id string) (*app.App, error) {
	return s.AppRepo.GetApp(ctx, id)
}

func (s *appService) MintSecret(ctx context.Context, appID string) (*MintSecretResponse, error) {
	if _, err := s.AppRepo.GetApp(ctx, appID); err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to generate secret material").
			Mark(ierr.ErrSystem)
	}
	plaintext := hex.EncodeToString(raw)

	encrypted, err := s.Vault.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}

	secret := &app.Secret{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APP_SECRET),
		AppID:           appID,
		Kid:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APP_SECRET),
		EncryptedSecret: encrypted,
		Status:          types.SecretStatusActive,
		CreatedAt:       s.Clock.Now(),
	}
	if err := s.AppRepo.CreateSecret(ctx, secret); err != nil {
		return nil, err
	}

	s.Logger.Infow("app secret minted", "app_id", appID, "kid", secret.Kid)
	return &MintSecretResponse{Kid: secret.Kid, Secret: plaintext}, nil
}

func (s *appService) ListSecrets(ctx context.Context, appID string) ([]*app.Secret, error) {
	return s.AppRepo.ListSecrets(ctx, appID)
}

func (s *appService) RevokeSecret(ctx context.Context, appID, kid string) error {
	if err := s.AppRepo.RevokeSecret(ctx, appID, kid); err != nil {
		return err
	}
	s.Logger.Infow("app secret revoked", "app_id", appID, "kid", kid)
	return nil
}
