package types

import (
	"fmt"

	"github.com/samber/lo"
)

// SubscriptionStatus mirrors the gateway's subscription lifecycle
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "TRIALING"
	SubscriptionStatusActive     SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue    SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled   SubscriptionStatus = "CANCELED"
	SubscriptionStatusIncomplete SubscriptionStatus = "INCOMPLETE"
	SubscriptionStatusUnpaid     SubscriptionStatus = "UNPAID"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusIncomplete,
		SubscriptionStatusUnpaid,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid subscription status: %s", s)
	}
	return nil
}

// SubscriptionStatusFromGateway maps a gateway status string onto the
// local lifecycle. Unknown gateway states collapse to INCOMPLETE so a
// webhook never fails on a status we have not modeled.
func SubscriptionStatusFromGateway(status string) SubscriptionStatus {
	switch status {
	case "active":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "trialing":
		return SubscriptionStatusTrialing
	case "canceled":
		return SubscriptionStatusCanceled
	case "unpaid":
		return SubscriptionStatusUnpaid
	default:
		return SubscriptionStatusIncomplete
	}
}

// ProductMapKind discriminates gateway product bindings for a plan or addon
type ProductMapKind string

const (
	ProductMapKindBase  ProductMapKind = "BASE"
	ProductMapKindSeat  ProductMapKind = "SEAT"
	ProductMapKindAddon ProductMapKind = "ADDON"
)

func (k ProductMapKind) String() string {
	return string(k)
}

func (k ProductMapKind) Validate() error {
	allowed := []ProductMapKind{
		ProductMapKindBase,
		ProductMapKindSeat,
		ProductMapKindAddon,
	}
	if !lo.Contains(allowed, k) {
		return fmt.Errorf("invalid product map kind: %s", k)
	}
	return nil
}
