package types

import (
	"fmt"

	"github.com/samber/lo"
)

// InvoiceStatus represents invoice lifecycle state. Invoices are never
// deleted; state transitions replace deletion.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "DRAFT"
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusIssued,
		InvoiceStatusPaid,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid invoice status: %s", s)
	}
	return nil
}

// InvoiceLineItemType classifies invoice lines built during period close
type InvoiceLineItemType string

const (
	InvoiceLineBaseFee     InvoiceLineItemType = "BASE_FEE"
	InvoiceLineUsageTrueup InvoiceLineItemType = "USAGE_TRUEUP"
	InvoiceLineAddon       InvoiceLineItemType = "ADDON"
	InvoiceLineCredit      InvoiceLineItemType = "CREDIT"
	InvoiceLineAdjustment  InvoiceLineItemType = "ADJUSTMENT"
)

func (t InvoiceLineItemType) String() string {
	return string(t)
}

func (t InvoiceLineItemType) Validate() error {
	allowed := []InvoiceLineItemType{
		InvoiceLineBaseFee,
		InvoiceLineUsageTrueup,
		InvoiceLineAddon,
		InvoiceLineCredit,
		InvoiceLineAdjustment,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid invoice line item type: %s", t)
	}
	return nil
}
