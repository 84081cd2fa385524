package app

import "context"

// Repository defines persistence for apps and their signing secrets
type Repository interface {
	CreateApp(ctx context.Context, a *App) error
	GetApp(ctx context.Context, id string) (*App, error)

	CreateSecret(ctx context.Context, s *Secret) error
	// GetSecretByKid looks a secret up by key id regardless of status;
	// the token engine distinguishes unknown from revoked.
	GetSecretByKid(ctx context.Context, kid string) (*Secret, error)
	ListSecrets(ctx context.Context, appID string) ([]*Secret, error)
	// RevokeSecret is idempotent: revoking a revoked secret is a no-op.
	RevokeSecret(ctx context.Context, appID, kid string) error
}
