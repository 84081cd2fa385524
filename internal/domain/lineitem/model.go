package lineitem

import (
	"time"

	"github.com/meterline/meterline/internal/types"
)

// BillableLineItem is one priced charge produced from a usage event.
// Line items are immutable once written; wallet_debited_at is the only
// field that changes afterwards.
type BillableLineItem struct {
	ID              string        `db:"id" json:"id"`
	AppID           string        `db:"app_id" json:"app_id"`
	BillToID        string        `db:"bill_to_id" json:"bill_to_id"`
	TeamID          string        `db:"team_id" json:"team_id"`
	UserID          *string       `db:"user_id" json:"user_id,omitempty"`
	UsageEventID    *string       `db:"usage_event_id" json:"usage_event_id,omitempty"`
	Timestamp       time.Time     `db:"timestamp" json:"timestamp"`
	PriceBookID     string        `db:"price_book_id" json:"price_book_id"`
	PriceRuleID     string        `db:"price_rule_id" json:"price_rule_id"`
	AmountMinor     int64         `db:"amount_minor" json:"amount_minor"`
	Currency        string        `db:"currency" json:"currency"`
	Description     string        `db:"description" json:"description"`
	InputsSnapshot  types.Payload `db:"inputs_snapshot" json:"inputs_snapshot"`
	WalletDebitedAt *time.Time    `db:"wallet_debited_at" json:"wallet_debited_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

func (l *BillableLineItem) TableName() string {
	return "billable_line_items"
}

// UsageTotal is an aggregation row grouped by app for one bill-to over
// a period. Period close turns these into invoice line items.
type UsageTotal struct {
	AppID       string `db:"app_id" json:"app_id"`
	AmountMinor int64  `db:"amount_minor" json:"amount_minor"`
	Count       int64  `db:"count" json:"count"`
}
