package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meterline/meterline/internal/domain/audit"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryLedgerStore is an in-memory implementation of
// ledger.Repository.
type InMemoryLedgerStore struct {
	mu       sync.RWMutex
	accounts map[string]*ledger.Account // app_id:bill_to_id:type
	entries  map[string]*ledger.Entry   // keyed by idempotency key
	order    []string
	clock    types.Clock
}

func NewInMemoryLedgerStore(clock types.Clock) *InMemoryLedgerStore {
	s := &InMemoryLedgerStore{clock: clock}
	s.reset()
	return s
}

func (s *InMemoryLedgerStore) reset() {
	s.accounts = make(map[string]*ledger.Account)
	s.entries = make(map[string]*ledger.Entry)
	s.order = nil
}

func accountKey(appID, billToID string, accountType types.LedgerAccountType) string {
	return appID + ":" + billToID + ":" + string(accountType)
}

func (s *InMemoryLedgerStore) GetOrCreateAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(appID, billToID, accountType)
	if acc, ok := s.accounts[key]; ok {
		cp := *acc
		return &cp, nil
	}
	acc := &ledger.Account{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ACCOUNT),
		AppID:     appID,
		BillToID:  billToID,
		Type:      accountType,
		CreatedAt: s.clock.Now(),
	}
	s.accounts[key] = acc
	cp := *acc
	return &cp, nil
}

func (s *InMemoryLedgerStore) GetAccount(ctx context.Context, appID, billToID string, accountType types.LedgerAccountType) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountKey(appID, billToID, accountType)]
	if !ok {
		return nil, ierr.NewError("ledger account not found").
			WithHintf("No %s account for billing entity %s", accountType, billToID).
			Mark(ierr.ErrNotFound)
	}
	cp := *acc
	return &cp, nil
}

func (s *InMemoryLedgerStore) CreateEntry(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.IdempotencyKey]; exists {
		return ierr.NewError("duplicate ledger entry").
			WithHintf("A ledger entry with idempotency key %s already exists", e.IdempotencyKey).
			Mark(ierr.ErrDuplicateLedgerEntry)
	}
	cp := *e
	s.entries[e.IdempotencyKey] = &cp
	s.order = append(s.order, e.IdempotencyKey)
	return nil
}

func (s *InMemoryLedgerStore) GetEntryByIdempotencyKey(ctx context.Context, key string) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ierr.NewError("ledger entry not found").
			WithHintf("No ledger entry with idempotency key %s", key).
			Mark(ierr.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryLedgerStore) ListEntries(ctx context.Context, accountID string, from, to time.Time) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*ledger.Entry{}
	for _, key := range s.order {
		e := s.entries[key]
		if e.LedgerAccountID != accountID {
			continue
		}
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryLedgerStore) ListEntriesByReference(ctx context.Context, referenceType types.LedgerReferenceType, referenceID string) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*ledger.Entry{}
	for _, key := range s.order {
		e := s.entries[key]
		if e.ReferenceType != referenceType {
			continue
		}
		if e.ReferenceID == nil || *e.ReferenceID != referenceID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryLedgerStore) AccountBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	for _, e := range s.entries {
		if e.LedgerAccountID != accountID {
			continue
		}
		if asOf != nil && e.Timestamp.After(*asOf) {
			continue
		}
		balance += e.AmountMinor
	}
	return balance, nil
}

// DeleteEntry removes an entry by idempotency key. Only tests use this,
// to simulate a lost ledger write for the repair pass.
func (s *InMemoryLedgerStore) DeleteEntry(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Entries returns all entries in insertion order
func (s *InMemoryLedgerStore) Entries() []*ledger.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ledger.Entry, 0, len(s.order))
	for _, key := range s.order {
		cp := *s.entries[key]
		out = append(out, &cp)
	}
	return out
}

func (s *InMemoryLedgerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemoryInvoiceStore is an in-memory implementation of
// invoice.Repository.
type InMemoryInvoiceStore struct {
	mu        sync.RWMutex
	invoices  map[string]*invoice.Invoice
	lineItems map[string][]*invoice.LineItem
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	s := &InMemoryInvoiceStore{}
	s.reset()
	return s
}

func (s *InMemoryInvoiceStore) reset() {
	s.invoices = make(map[string]*invoice.Invoice)
	s.lineItems = make(map[string][]*invoice.LineItem)
}

func (s *InMemoryInvoiceStore) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice, items []*invoice.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invoices {
		if existing.ContractID == inv.ContractID &&
			existing.PeriodStart.Equal(inv.PeriodStart) &&
			existing.PeriodEnd.Equal(inv.PeriodEnd) {
			return ierr.NewError("invoice already exists").
				WithHint("An invoice for this contract and period already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}

	cp := *inv
	s.invoices[inv.ID] = &cp
	stored := make([]*invoice.LineItem, 0, len(items))
	for _, item := range items {
		icp := *item
		stored = append(stored, &icp)
	}
	s.lineItems[inv.ID] = stored
	return nil
}

func (s *InMemoryInvoiceStore) GetByID(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (s *InMemoryInvoiceStore) GetByPeriod(ctx context.Context, contractID string, periodStart, periodEnd time.Time) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.ContractID == contractID &&
			inv.PeriodStart.Equal(periodStart) &&
			inv.PeriodEnd.Equal(periodEnd) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ierr.NewError("invoice not found").
		WithHintf("No invoice for contract %s in this period", contractID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		return ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}
	cp := *inv
	s.invoices[inv.ID] = &cp
	return nil
}

func (s *InMemoryInvoiceStore) ListByBillTo(ctx context.Context, billToID string) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*invoice.Invoice{}
	for _, inv := range s.invoices {
		if inv.BillToID == billToID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.After(out[j].PeriodStart) })
	return out, nil
}

func (s *InMemoryInvoiceStore) ListLineItems(ctx context.Context, invoiceID string) ([]*invoice.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*invoice.LineItem{}
	for _, item := range s.lineItems[invoiceID] {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemoryAuditStore is an in-memory implementation of
// audit.Repository.
type InMemoryAuditStore struct {
	mu   sync.RWMutex
	logs []*audit.Log
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{}
}

func (s *InMemoryAuditStore) Create(ctx context.Context, l *audit.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *InMemoryAuditStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]*audit.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*audit.Log{}
	for _, l := range s.logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryAuditStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
}
