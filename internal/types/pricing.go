package types

import (
	"fmt"

	"github.com/samber/lo"
)

// PriceBookKind separates the two parallel monetary streams: operator
// cost (COGS) and end-team charge (CUSTOMER).
type PriceBookKind string

const (
	PriceBookKindCOGS     PriceBookKind = "COGS"
	PriceBookKindCustomer PriceBookKind = "CUSTOMER"
)

func (k PriceBookKind) String() string {
	return string(k)
}

func (k PriceBookKind) Validate() error {
	allowed := []PriceBookKind{
		PriceBookKindCOGS,
		PriceBookKindCustomer,
	}
	if !lo.Contains(allowed, k) {
		return fmt.Errorf("invalid price book kind: %s", k)
	}
	return nil
}

// PriceRuleType is the supported set of rule shapes
type PriceRuleType string

const (
	PriceRuleFlat    PriceRuleType = "flat"
	PriceRulePerUnit PriceRuleType = "per_unit"
	PriceRuleTiered  PriceRuleType = "tiered"
)

func (t PriceRuleType) String() string {
	return string(t)
}
