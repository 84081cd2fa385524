package types

import "time"

// BaseModel is embedded by domain models that are persisted in the
// database. Any change here needs a matching schema migration.
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func GetDefaultBaseModel(now time.Time) BaseModel {
	now = now.UTC()
	return BaseModel{
		CreatedAt: now,
		UpdatedAt: now,
	}
}
