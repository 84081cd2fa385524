package types

import (
	"fmt"

	"github.com/samber/lo"

	ierr "github.com/meterline/meterline/internal/errors"
)

// LedgerAccountType partitions a billing entity's postings
type LedgerAccountType string

const (
	LedgerAccountWallet             LedgerAccountType = "WALLET"
	LedgerAccountAccountsReceivable LedgerAccountType = "ACCOUNTS_RECEIVABLE"
	LedgerAccountRevenue            LedgerAccountType = "REVENUE"
	LedgerAccountCOGS               LedgerAccountType = "COGS"
	LedgerAccountTax                LedgerAccountType = "TAX"
)

func (t LedgerAccountType) String() string {
	return string(t)
}

func (t LedgerAccountType) Validate() error {
	allowed := []LedgerAccountType{
		LedgerAccountWallet,
		LedgerAccountAccountsReceivable,
		LedgerAccountRevenue,
		LedgerAccountCOGS,
		LedgerAccountTax,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid ledger account type: %s", t)
	}
	return nil
}

// LedgerEntryType classifies a posting. Sign convention: TOPUP and REFUND
// are positive on WALLET, USAGE_CHARGE and SUBSCRIPTION_CHARGE are negative
// on WALLET. The caller always provides the signed amount; the ledger never
// flips signs.
type LedgerEntryType string

const (
	LedgerEntryTopup              LedgerEntryType = "TOPUP"
	LedgerEntrySubscriptionCharge LedgerEntryType = "SUBSCRIPTION_CHARGE"
	LedgerEntryUsageCharge        LedgerEntryType = "USAGE_CHARGE"
	LedgerEntryRefund             LedgerEntryType = "REFUND"
	LedgerEntryAdjustment         LedgerEntryType = "ADJUSTMENT"
	LedgerEntryInvoicePayment     LedgerEntryType = "INVOICE_PAYMENT"
	LedgerEntryCOGSAccrual        LedgerEntryType = "COGS_ACCRUAL"
)

func (t LedgerEntryType) String() string {
	return string(t)
}

func (t LedgerEntryType) Validate() error {
	allowed := []LedgerEntryType{
		LedgerEntryTopup,
		LedgerEntrySubscriptionCharge,
		LedgerEntryUsageCharge,
		LedgerEntryRefund,
		LedgerEntryAdjustment,
		LedgerEntryInvoicePayment,
		LedgerEntryCOGSAccrual,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid ledger entry type: %s", t)
	}
	return nil
}

// LedgerReferenceType names what a posting points back at
type LedgerReferenceType string

const (
	LedgerReferenceUsageEvent   LedgerReferenceType = "USAGE_EVENT"
	LedgerReferenceLineItem     LedgerReferenceType = "LINE_ITEM"
	LedgerReferenceInvoice      LedgerReferenceType = "INVOICE"
	LedgerReferenceGatewayEvent LedgerReferenceType = "GATEWAY_EVENT"
	LedgerReferencePayment      LedgerReferenceType = "PAYMENT"
)

func (t LedgerReferenceType) String() string {
	return string(t)
}

func (t LedgerReferenceType) Validate() error {
	allowed := []LedgerReferenceType{
		LedgerReferenceUsageEvent,
		LedgerReferenceLineItem,
		LedgerReferenceInvoice,
		LedgerReferenceGatewayEvent,
		LedgerReferencePayment,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid ledger reference type").
			WithHint("Invalid ledger reference type").
			WithReportableDetails(map[string]any{
				"reference_type": t,
				"allowed":        allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
