package dto

import (
	"time"

	"github.com/meterline/meterline/internal/domain/app"
)

// CreateAppRequest registers a developer application
type CreateAppRequest struct {
	Name string `json:"name" validate:"required"`
}

// MintSecretResponse returns the plaintext exactly once; only the kid
// is ever served again.
type MintSecretResponse struct {
	Kid    string `json:"kid"`
	Secret string `json:"secret"`
}

// SecretResponse is the plaintext-free view of a signing key
type SecretResponse struct {
	Kid       string     `json:"kid"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

func NewSecretResponse(s *app.Secret) *SecretResponse {
	return &SecretResponse{
		Kid:       s.Kid,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		RevokedAt: s.RevokedAt,
	}
}
