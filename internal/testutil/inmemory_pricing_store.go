package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/lineitem"
	"github.com/meterline/meterline/internal/domain/pricebook"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// InMemoryPriceBookStore is an in-memory implementation of
// pricebook.Repository.
type InMemoryPriceBookStore struct {
	mu    sync.RWMutex
	books map[string]*pricebook.PriceBook
	rules map[string][]*pricebook.Rule
}

func NewInMemoryPriceBookStore() *InMemoryPriceBookStore {
	s := &InMemoryPriceBookStore{}
	s.reset()
	return s
}

func (s *InMemoryPriceBookStore) reset() {
	s.books = make(map[string]*pricebook.PriceBook)
	s.rules = make(map[string][]*pricebook.Rule)
}

func (s *InMemoryPriceBookStore) CreateBook(ctx context.Context, b *pricebook.PriceBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *InMemoryPriceBookStore) GetBook(ctx context.Context, id string) (*pricebook.PriceBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return nil, ierr.NewError("price book not found").
			WithHintf("Price book with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *InMemoryPriceBookStore) GetLatestBook(ctx context.Context, appID string, kind types.PriceBookKind, asOf time.Time) (*pricebook.PriceBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *pricebook.PriceBook
	for _, b := range s.books {
		if b.AppID != appID || b.Kind != kind || b.EffectiveFrom.After(asOf) {
			continue
		}
		if latest == nil || b.EffectiveFrom.After(latest.EffectiveFrom) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ierr.NewError("price book not found").
			WithHintf("No %s price book effective for app %s", kind, appID).
			Mark(ierr.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

func (s *InMemoryPriceBookStore) ListBooks(ctx context.Context, appID string) ([]*pricebook.PriceBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*pricebook.PriceBook{}
	for _, b := range s.books {
		if b.AppID == appID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.After(out[j].EffectiveFrom) })
	return out, nil
}

func (s *InMemoryPriceBookStore) CreateRule(ctx context.Context, r *pricebook.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.rules[r.PriceBookID] = append(s.rules[r.PriceBookID], &cp)
	return nil
}

func (s *InMemoryPriceBookStore) ListRules(ctx context.Context, priceBookID string) ([]*pricebook.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*pricebook.Rule{}
	for _, r := range s.rules[priceBookID] {
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryPriceBookStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemoryEventStore is an in-memory implementation of
// events.Repository.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]*events.UsageEvent
	dedup  map[string]string // app_id:idempotency_key -> event id
}

func NewInMemoryEventStore() *InMemoryEventStore {
	s := &InMemoryEventStore{}
	s.reset()
	return s
}

func (s *InMemoryEventStore) reset() {
	s.events = make(map[string]*events.UsageEvent)
	s.dedup = make(map[string]string)
}

func (s *InMemoryEventStore) Create(ctx context.Context, e *events.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.AppID + ":" + e.IdempotencyKey
	if _, exists := s.dedup[key]; exists {
		return ierr.NewError("event already exists").
			WithHint("An event with this idempotency key already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *e
	s.events[e.ID] = &cp
	s.dedup[key] = e.ID
	return nil
}

func (s *InMemoryEventStore) GetByID(ctx context.Context, id string) (*events.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ierr.NewError("usage event not found").
			WithHintf("Usage event with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *InMemoryEventStore) ListUnpriced(ctx context.Context, now time.Time, limit int) ([]*events.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*events.UsageEvent{}
	for _, e := range s.events {
		if e.PricedAt != nil {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryEventStore) MarkPriced(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ierr.NewError("usage event not found").
			WithHintf("Usage event with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	t := at
	e.PricedAt = &t
	e.UpdatedAt = at
	return nil
}

func (s *InMemoryEventStore) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ierr.NewError("usage event not found").
			WithHintf("Usage event with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	t := nextRetryAt
	e.RetryCount = retryCount
	e.NextRetryAt = &t
	return nil
}

func (s *InMemoryEventStore) ListByBillTo(ctx context.Context, appID, billToID string, from, to time.Time) ([]*events.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*events.UsageEvent{}
	for _, e := range s.events {
		if e.AppID != appID || e.BillToID != billToID {
			continue
		}
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// InMemoryLineItemStore is an in-memory implementation of
// lineitem.Repository. The CUSTOMER-kind filters need the price book
// store to resolve a line item's book.
type InMemoryLineItemStore struct {
	mu    sync.RWMutex
	items map[string]*lineitem.BillableLineItem
	order []string
	books *InMemoryPriceBookStore
}

func NewInMemoryLineItemStore(books *InMemoryPriceBookStore) *InMemoryLineItemStore {
	s := &InMemoryLineItemStore{books: books}
	s.reset()
	return s
}

func (s *InMemoryLineItemStore) reset() {
	s.items = make(map[string]*lineitem.BillableLineItem)
	s.order = nil
}

func (s *InMemoryLineItemStore) bookKind(id string) types.PriceBookKind {
	s.books.mu.RLock()
	defer s.books.mu.RUnlock()
	if b, ok := s.books.books[id]; ok {
		return b.Kind
	}
	return ""
}

func (s *InMemoryLineItemStore) Create(ctx context.Context, item *lineitem.BillableLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *item
	s.items[item.ID] = &cp
	s.order = append(s.order, item.ID)
	return nil
}

func (s *InMemoryLineItemStore) CreateBulk(ctx context.Context, items []*lineitem.BillableLineItem) error {
	for _, item := range items {
		if err := s.Create(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryLineItemStore) GetByID(ctx context.Context, id string) (*lineitem.BillableLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ierr.NewError("line item not found").
			WithHintf("Line item with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (s *InMemoryLineItemStore) ExistsForEvent(ctx context.Context, usageEventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.UsageEventID != nil && *item.UsageEventID == usageEventID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryLineItemStore) MarkWalletDebited(ctx context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			t := at
			item.WalletDebitedAt = &t
		}
	}
	return nil
}

// ClearWalletDebited unsets the debit mark on one item. Only tests use
// this, to simulate a mark lost after the ledger write committed.
func (s *InMemoryLineItemStore) ClearWalletDebited(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[id]; ok {
		item.WalletDebitedAt = nil
	}
}

func (s *InMemoryLineItemStore) ListUndebited(ctx context.Context, limit int) ([]*lineitem.BillableLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*lineitem.BillableLineItem{}
	for _, id := range s.order {
		item := s.items[id]
		if item.WalletDebitedAt != nil {
			continue
		}
		if s.bookKind(item.PriceBookID) != types.PriceBookKindCustomer {
			continue
		}
		cp := *item
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryLineItemStore) SumByApp(ctx context.Context, billToID string, from, to time.Time) ([]*lineitem.UsageTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byApp := map[string]*lineitem.UsageTotal{}
	for _, item := range s.items {
		if item.BillToID != billToID {
			continue
		}
		if item.Timestamp.Before(from) || !item.Timestamp.Before(to) {
			continue
		}
		if s.bookKind(item.PriceBookID) != types.PriceBookKindCustomer {
			continue
		}
		total, ok := byApp[item.AppID]
		if !ok {
			total = &lineitem.UsageTotal{AppID: item.AppID}
			byApp[item.AppID] = total
		}
		total.AmountMinor += item.AmountMinor
		total.Count++
	}

	out := make([]*lineitem.UsageTotal, 0, len(byApp))
	for _, total := range byApp {
		out = append(out, total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out, nil
}

func (s *InMemoryLineItemStore) ListByBillTo(ctx context.Context, billToID string, from, to time.Time) ([]*lineitem.BillableLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*lineitem.BillableLineItem{}
	for _, item := range s.items {
		if item.BillToID != billToID {
			continue
		}
		if item.Timestamp.Before(from) || !item.Timestamp.Before(to) {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryLineItemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
