package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Ledger idempotency keys. Every financial write derives its key from
// these builders so retries and webhook replays collapse to no-ops.

// WalletDebitKey keys the immediate debit of one line item
func WalletDebitKey(lineItemID string) string {
	return "wallet-debit:" + lineItemID
}

// WalletBatchKey keys one aggregated batch debit. The hash covers the
// sorted line item ids so the same set always yields the same key.
func WalletBatchKey(appID, billToID string, lineItemIDs []string) string {
	ids := make([]string, len(lineItemIDs))
	copy(ids, lineItemIDs)
	sort.Strings(ids)

	hash := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return fmt.Sprintf("wallet-batch:%s:%s:%s", appID, billToID, hex.EncodeToString(hash[:8]))
}

// PeriodCloseKey keys the ledger entry of one invoice line, stable
// across repair runs because lines are iterated in index order.
func PeriodCloseKey(contractID, invoiceID string, lineIndex int) string {
	return fmt.Sprintf("period-close:%s:%s:%d", contractID, invoiceID, lineIndex)
}

// InvoicePaidKey keys the single payment entry of an invoice
func InvoicePaidKey(invoiceID string) string {
	return "invoice-paid:" + invoiceID
}

// CheckoutKey keys the subscription charge posted for one gateway
// checkout event
func CheckoutKey(eventID string) string {
	return "checkout:" + eventID
}

// TopupKey keys the wallet credit posted for one gateway payment event
func TopupKey(eventID string) string {
	return "topup:" + eventID
}
