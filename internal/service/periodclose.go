package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meterline/meterline/internal/domain/audit"
	"github.com/meterline/meterline/internal/domain/contract"
	"github.com/meterline/meterline/internal/domain/invoice"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/types"
)

// PeriodCloseResult counts one sweep over the active contracts
type PeriodCloseResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// PeriodCloseService closes contract billing periods into invoices and
// posts the matching ledger entries. The whole sweep is re-runnable:
// existing invoices are detected by (contract, period) and only their
// missing ledger entries are repaired.
type PeriodCloseService interface {
	// Run closes the most recent fully elapsed period of every ACTIVE
	// contract as of the given instant.
	Run(ctx context.Context, asOf time.Time) (*PeriodCloseResult, error)
	// CloseContract closes one contract's period; callers use it for
	// targeted replays.
	CloseContract(ctx context.Context, c *contract.Contract, asOf time.Time) (closed bool, err error)
	// MarkInvoicePaid transitions ISSUED to PAID and posts the payment
	// entry. Re-marking a PAID invoice is a no-op.
	MarkInvoicePaid(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
	// ExportInvoice returns the invoice with its lines and records the
	// export in the audit log.
	ExportInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceExport, error)
	GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error)
	ListInvoiceLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error)
}

// InvoiceExport is the read-only projection served by the export
// endpoint.
type InvoiceExport struct {
	Invoice   *invoice.Invoice    `json:"invoice"`
	LineItems []*invoice.LineItem `json:"line_items"`
}

type periodCloseService struct {
	ServiceParams
	ledger LedgerService
}

func NewPeriodCloseService(params ServiceParams, ledger LedgerService) PeriodCloseService {
	return &periodCloseService{ServiceParams: params, ledger: ledger}
}

func (s *periodCloseService) Run(ctx context.Context, asOf time.Time) (*PeriodCloseResult, error) {
	contracts, err := s.ContractRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &PeriodCloseResult{}
	for _, c := range contracts {
		closed, err := s.CloseContract(ctx, c, asOf)
		switch {
		case err != nil:
			result.Failed++
			s.Logger.Errorw("period close failed",
				"contract_id", c.ID,
				"error", err,
			)
		case closed:
			result.Processed++
		default:
			result.Skipped++
		}
	}

	s.Logger.Infow("period close run finished",
		"as_of", asOf,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *periodCloseService) CloseContract(ctx context.Context, c *contract.Contract, asOf time.Time) (bool, error) {
	periodStart, periodEnd, ok := lastElapsedPeriod(c.StartsAt, c.BillingPeriod, asOf)
	if !ok {
		// No fully elapsed period yet.
		return false, nil
	}

	existing, err := s.InvoiceRepo.GetByPeriod(ctx, c.ID, periodStart, periodEnd)
	if err == nil {
		// Already closed; repair any ledger entries lost after the
		// invoice transaction committed.
		return false, s.repairLedger(ctx, c, existing)
	}
	if !ierr.IsNotFound(err) {
		return false, err
	}

	usage, err := s.aggregateUsage(ctx, c.BillToID, periodStart, periodEnd)
	if err != nil {
		return false, err
	}

	inv, lines := s.buildInvoice(ctx, c, periodStart, periodEnd, usage)
	if err := s.InvoiceRepo.CreateWithLineItems(ctx, inv, lines); err != nil {
		if ierr.IsAlreadyExists(err) {
			// A concurrent run won; its repair pass covers the ledger.
			return false, nil
		}
		return false, err
	}

	// Ledger posting is deliberately outside the invoice transaction.
	// Failures here are retried by the repair pass on the next run.
	s.postLedgerEntries(ctx, c, inv, lines)
	return true, nil
}

// meterUsage is the per-(app, eventType) rollup of one period
type meterUsage struct {
	AppID       string
	EventType   string
	AmountMinor int64
	Count       int64
}

func (s *periodCloseService) aggregateUsage(ctx context.Context, billToID string, from, to time.Time) ([]*meterUsage, error) {
	items, err := s.LineItemRepo.ListByBillTo(ctx, billToID, from, to)
	if err != nil {
		return nil, err
	}

	bookKinds := map[string]types.PriceBookKind{}
	totals := map[string]*meterUsage{}
	for _, item := range items {
		kind, ok := bookKinds[item.PriceBookID]
		if !ok {
			book, err := s.PriceBookRepo.GetBook(ctx, item.PriceBookID)
			if err != nil {
				return nil, err
			}
			kind = book.Kind
			bookKinds[item.PriceBookID] = kind
		}
		if kind != types.PriceBookKindCustomer {
			continue
		}

		eventType, _ := item.InputsSnapshot["eventType"].(string)
		key := item.AppID + ":" + eventType
		u, ok := totals[key]
		if !ok {
			u = &meterUsage{AppID: item.AppID, EventType: eventType}
			totals[key] = u
		}
		u.AmountMinor += item.AmountMinor
		u.Count++
	}

	out := make([]*meterUsage, 0, len(totals))
	for _, u := range totals {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppID != out[j].AppID {
			return out[i].AppID < out[j].AppID
		}
		return out[i].EventType < out[j].EventType
	})
	return out, nil
}

func (s *periodCloseService) buildInvoice(ctx context.Context, c *contract.Contract, periodStart, periodEnd time.Time, usage []*meterUsage) (*invoice.Invoice, []*invoice.LineItem) {
	now := s.Clock.Now()
	inv := &invoice.Invoice{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		ContractID:  c.ID,
		BillToID:    c.BillToID,
		Currency:    c.Currency,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      types.InvoiceStatusIssued,
		BaseModel:   types.GetDefaultBaseModel(now),
	}

	var lines []*invoice.LineItem
	switch c.PricingMode {
	case types.PricingModeFixed:
		lines = append(lines, s.newLine(inv.ID, nil, types.InvoiceLineBaseFee,
			"Base fee", c.BaseFeeMinor, nil))

	case types.PricingModeFixedPlusTrueup:
		lines = append(lines, s.newLine(inv.ID, nil, types.InvoiceLineBaseFee,
			"Base fee", c.BaseFeeMinor, nil))
		for _, u := range usage {
			included := s.includedFor(ctx, c, u.AppID, u.EventType)
			if u.AmountMinor <= included {
				continue
			}
			appID := u.AppID
			lines = append(lines, s.newLine(inv.ID, &appID, types.InvoiceLineUsageTrueup,
				fmt.Sprintf("Usage true-up: %s", u.EventType),
				u.AmountMinor-included,
				types.Payload{
					"eventType":        u.EventType,
					"totalAmountMinor": u.AmountMinor,
					"includedMinor":    included,
					"count":            u.Count,
				}))
		}

	case types.PricingModeMinCommitTrueup:
		var totalUsage int64
		for _, u := range usage {
			totalUsage += u.AmountMinor
		}
		base := totalUsage
		if c.MinCommitMinor > base {
			base = c.MinCommitMinor
		}
		lines = append(lines, s.newLine(inv.ID, nil, types.InvoiceLineBaseFee,
			"Minimum commitment", base, types.Payload{
				"totalUsageMinor": totalUsage,
				"minCommitMinor":  c.MinCommitMinor,
			}))
		// Detail lines carry zero amounts so the commitment line is the
		// only charge; the per-meter totals live in the summary.
		for _, u := range usage {
			appID := u.AppID
			lines = append(lines, s.newLine(inv.ID, &appID, types.InvoiceLineUsageTrueup,
				fmt.Sprintf("Usage detail: %s", u.EventType), 0, types.Payload{
					"eventType":        u.EventType,
					"totalAmountMinor": u.AmountMinor,
					"count":            u.Count,
				}))
		}

	case types.PricingModeCustomInvoiceOnly:
		inv.Status = types.InvoiceStatusDraft
		lines = append(lines, s.newLine(inv.ID, nil, types.InvoiceLineBaseFee,
			"Custom invoice", 0, nil))
		for _, u := range usage {
			appID := u.AppID
			lines = append(lines, s.newLine(inv.ID, &appID, types.InvoiceLineUsageTrueup,
				fmt.Sprintf("Usage: %s", u.EventType), u.AmountMinor, types.Payload{
					"eventType": u.EventType,
					"count":     u.Count,
				}))
		}
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.AmountMinor
	}
	inv.SubtotalMinor = subtotal
	inv.TaxMinor = 0
	inv.TotalMinor = subtotal + inv.TaxMinor

	if inv.Status == types.InvoiceStatusIssued {
		issuedAt := now
		inv.IssuedAt = &issuedAt
	}
	dueAt := now.AddDate(0, 0, c.TermsDays)
	inv.DueAt = &dueAt

	return inv, lines
}

func (s *periodCloseService) newLine(invoiceID string, appID *string, lineType types.InvoiceLineItemType, description string, amountMinor int64, summary types.Payload) *invoice.LineItem {
	return &invoice.LineItem{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		InvoiceID:    invoiceID,
		AppID:        appID,
		Type:         lineType,
		Description:  description,
		Quantity:     1,
		AmountMinor:  amountMinor,
		UsageSummary: summary,
		CreatedAt:    s.Clock.Now(),
	}
}

// includedFor resolves the included amount for one meter, preferring a
// contract override over the bundle default.
func (s *periodCloseService) includedFor(ctx context.Context, c *contract.Contract, appID, meterKey string) int64 {
	overrides, err := s.ContractRepo.ListOverrides(ctx, c.ID)
	if err == nil {
		for _, o := range overrides {
			if o.AppID == appID && o.MeterKey == meterKey {
				return o.Included()
			}
		}
	}
	policies, err := s.BundleRepo.ListMeterPolicies(ctx, c.BundleID, appID)
	if err != nil {
		return 0
	}
	for _, p := range policies {
		if p.MeterKey == meterKey {
			return p.Included()
		}
	}
	return 0
}

// postLedgerEntries posts one entry per invoice line in index order.
// Duplicates are no-ops; other failures are logged and left for the
// repair pass.
func (s *periodCloseService) postLedgerEntries(ctx context.Context, c *contract.Contract, inv *invoice.Invoice, lines []*invoice.LineItem) {
	defaultAppID, err := s.appForBillTo(ctx, inv.BillToID)
	if err != nil {
		s.Logger.Errorw("invoice ledger posting failed",
			"invoice_id", inv.ID,
			"error", err,
		)
		return
	}

	for idx, line := range lines {
		entryType := types.LedgerEntryUsageCharge
		if line.Type == types.InvoiceLineBaseFee {
			entryType = types.LedgerEntrySubscriptionCharge
		}
		appID := defaultAppID
		if line.AppID != nil {
			appID = *line.AppID
		}

		_, err := s.ledger.CreateEntry(ctx, CreateEntryRequest{
			AppID:          appID,
			BillToID:       inv.BillToID,
			AccountType:    types.LedgerAccountAccountsReceivable,
			Type:           entryType,
			AmountMinor:    line.AmountMinor,
			Currency:       inv.Currency,
			ReferenceType:  types.LedgerReferenceInvoice,
			ReferenceID:    inv.ID,
			IdempotencyKey: idempotency.PeriodCloseKey(c.ID, inv.ID, idx),
			Metadata: types.Metadata{
				"invoice_line_item_id": line.ID,
				"line_type":            string(line.Type),
			},
		})
		if err != nil && !ierr.IsDuplicateLedgerEntry(err) {
			s.Logger.Errorw("invoice ledger posting failed",
				"invoice_id", inv.ID,
				"line_index", idx,
				"error", err,
			)
		}
	}
}

// repairLedger re-issues the ledger entries of an existing invoice with
// the original idempotency keys. Present entries dedupe; missing ones
// are inserted.
func (s *periodCloseService) repairLedger(ctx context.Context, c *contract.Contract, inv *invoice.Invoice) error {
	lines, err := s.InvoiceRepo.ListLineItems(ctx, inv.ID)
	if err != nil {
		return err
	}
	s.postLedgerEntries(ctx, c, inv, lines)
	return nil
}

func (s *periodCloseService) MarkInvoicePaid(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	inv, err := s.InvoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case types.InvoiceStatusPaid:
		return inv, nil
	case types.InvoiceStatusIssued:
	default:
		return nil, ierr.NewError("invoice is not payable").
			WithHintf("Invoice %s is %s; only ISSUED invoices can be marked paid", inv.ID, inv.Status).
			Mark(ierr.ErrValidation)
	}

	appID, err := s.appForBillTo(ctx, inv.BillToID)
	if err != nil {
		return nil, err
	}

	// The payment posting is keyed under PAYMENT so the postings that
	// reference the invoice itself keep summing to its total.
	_, err = s.ledger.CreateEntry(ctx, CreateEntryRequest{
		AppID:          appID,
		BillToID:       inv.BillToID,
		AccountType:    types.LedgerAccountAccountsReceivable,
		Type:           types.LedgerEntryInvoicePayment,
		AmountMinor:    -inv.TotalMinor,
		Currency:       inv.Currency,
		ReferenceType:  types.LedgerReferencePayment,
		ReferenceID:    inv.ID,
		IdempotencyKey: idempotency.InvoicePaidKey(inv.ID),
		Metadata:       types.Metadata{"invoice_id": inv.ID},
	})
	if err != nil && !ierr.IsDuplicateLedgerEntry(err) {
		return nil, err
	}

	inv.Status = types.InvoiceStatusPaid
	inv.UpdatedAt = s.Clock.Now()
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *periodCloseService) ExportInvoice(ctx context.Context, invoiceID, actor string) (*InvoiceExport, error) {
	inv, err := s.InvoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	lines, err := s.InvoiceRepo.ListLineItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := s.AuditRepo.Create(ctx, &audit.Log{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT_LOG),
		Action:     "invoice.export",
		EntityType: "invoice",
		EntityID:   inv.ID,
		Actor:      actor,
		At:         s.Clock.Now(),
		Payload:    types.Payload{"status": string(inv.Status)},
	}); err != nil {
		s.Logger.Warnw("audit write failed", "invoice_id", inv.ID, "error", err)
	}

	return &InvoiceExport{Invoice: inv, LineItems: lines}, nil
}

func (s *periodCloseService) GetInvoice(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.GetByID(ctx, invoiceID)
}

func (s *periodCloseService) ListInvoiceLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error) {
	return s.InvoiceRepo.ListLineItems(ctx, invoiceID)
}

// appForBillTo resolves the owning team's app, used for contract-level
// lines that carry no app of their own.
func (s *periodCloseService) appForBillTo(ctx context.Context, billToID string) (string, error) {
	t, err := s.TeamRepo.GetByBillTo(ctx, billToID)
	if err != nil {
		return "", err
	}
	return t.AppID, nil
}

// lastElapsedPeriod returns the most recent period [start, end) with
// end <= asOf, stepping whole billing periods from the contract start.
// ok is false when no period has fully elapsed yet.
func lastElapsedPeriod(startsAt time.Time, period types.BillingPeriod, asOf time.Time) (time.Time, time.Time, bool) {
	months := period.Months()
	start := startsAt
	end := start.AddDate(0, months, 0)
	if end.After(asOf) {
		return time.Time{}, time.Time{}, false
	}
	for {
		nextEnd := end.AddDate(0, months, 0)
		if nextEnd.After(asOf) {
			return start, end, true
		}
		start = end
		end = nextEnd
	}
}
