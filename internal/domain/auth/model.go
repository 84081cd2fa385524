package auth

import (
	"context"
	"time"
)

// JtiRecord marks a token id as used. Inserting it is the atomic proof
// of first use; a uniqueness violation means the token was replayed.
type JtiRecord struct {
	Jti       string    `db:"jti" json:"jti"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

func (r *JtiRecord) TableName() string {
	return "jti_records"
}

// ReplayRepository is the replay store injected into the token engine
type ReplayRepository interface {
	// Insert records first use of a jti. Returns a duplicate-marked
	// error when the jti was already consumed.
	Insert(ctx context.Context, jti string, expiresAt time.Time) error
	// DeleteExpired garbage-collects records whose lifetime has passed
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
