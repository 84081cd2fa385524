package pricebook

import (
	"time"

	"github.com/meterline/meterline/internal/types"
)

// PriceBook is one side of the parallel pricing streams for an app.
// The book effective for an event is the most recent one whose
// effective_from is at or before the event timestamp.
type PriceBook struct {
	ID            string              `db:"id" json:"id"`
	AppID         string              `db:"app_id" json:"app_id"`
	Kind          types.PriceBookKind `db:"kind" json:"kind"`
	Currency      string              `db:"currency" json:"currency"`
	EffectiveFrom time.Time           `db:"effective_from" json:"effective_from"`
	types.BaseModel
}

func (b *PriceBook) TableName() string {
	return "price_books"
}

// Rule is a single pricing rule. Higher priority wins; ties break on
// earliest created_at. Match is a conjunction of scalar equality checks
// on the event type and payload fields; Rule holds the rule shape
// (flat, per_unit, tiered) decoded strictly by the pricing engine.
type Rule struct {
	ID          string        `db:"id" json:"id"`
	PriceBookID string        `db:"price_book_id" json:"price_book_id"`
	Priority    int           `db:"priority" json:"priority"`
	Match       types.Payload `db:"match" json:"match"`
	Rule        types.Payload `db:"rule" json:"rule"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

func (r *Rule) TableName() string {
	return "price_rules"
}
