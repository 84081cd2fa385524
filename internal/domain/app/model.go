package app

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// App is the tenant envelope. It owns secrets, catalog entries, price
// books, and usage events.
type App struct {
	ID     string          `db:"id" json:"id"`
	Name   string          `db:"name" json:"name"`
	Status types.AppStatus `db:"status" json:"status"`
	types.BaseModel
}

func (a *App) TableName() string {
	return "apps"
}

func (a *App) Validate() error {
	if a.Name == "" {
		return ierr.NewError("app name is required").
			WithHint("App name is required").
			Mark(ierr.ErrValidation)
	}
	if err := a.Status.Validate(); err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}
	return nil
}

// Secret is an HMAC signing secret, stored encrypted. Multiple ACTIVE
// secrets per app allow key rotation; REVOKED is terminal.
type Secret struct {
	ID              string             `db:"id" json:"id"`
	AppID           string             `db:"app_id" json:"app_id"`
	Kid             string             `db:"kid" json:"kid"`
	EncryptedSecret string             `db:"encrypted_secret" json:"-"`
	Status          types.SecretStatus `db:"status" json:"status"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	RevokedAt       *time.Time         `db:"revoked_at" json:"revoked_at,omitempty"`
}

func (s *Secret) TableName() string {
	return "app_secrets"
}
