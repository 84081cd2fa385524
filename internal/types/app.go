package types

import (
	"fmt"

	"github.com/samber/lo"
)

// AppStatus represents the lifecycle status of a tenant application
type AppStatus string

const (
	AppStatusActive   AppStatus = "ACTIVE"
	AppStatusDisabled AppStatus = "DISABLED"
)

func (s AppStatus) String() string {
	return string(s)
}

func (s AppStatus) Validate() error {
	allowed := []AppStatus{
		AppStatusActive,
		AppStatusDisabled,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid app status: %s", s)
	}
	return nil
}

// SecretStatus represents the status of an app signing secret.
// REVOKED is terminal; multiple ACTIVE secrets per app are allowed so
// clients can rotate keys without downtime.
type SecretStatus string

const (
	SecretStatusActive  SecretStatus = "ACTIVE"
	SecretStatusRevoked SecretStatus = "REVOKED"
)

func (s SecretStatus) String() string {
	return string(s)
}

func (s SecretStatus) Validate() error {
	allowed := []SecretStatus{
		SecretStatusActive,
		SecretStatusRevoked,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid secret status: %s", s)
	}
	return nil
}
