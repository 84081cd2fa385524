package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/lineitem"
	"github.com/meterline/meterline/internal/domain/pricebook"
	"github.com/meterline/meterline/internal/domain/team"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

// flakyPricing fails the first failuresLeft calls with a transient
// error, then delegates to the real engine.
type flakyPricing struct {
	inner        service.PricingService
	failuresLeft int
	calls        int
}

func (p *flakyPricing) PriceEvent(ctx context.Context, event *events.UsageEvent) ([]service.LineItemDraft, error) {
	p.calls++
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return nil, context.DeadlineExceeded
	}
	return p.inner.PriceEvent(ctx, event)
}

type noopTrigger struct{}

func (noopTrigger) CheckAndTriggerAutoTopUp(ctx context.Context, appID, teamID string) error {
	return nil
}

// passthroughTx satisfies TxRunner over the in-memory stores, which
// commit every call anyway. It counts runs so tests can assert the
// emit and the stamp share one transaction.
type passthroughTx struct {
	runs int
}

func (t *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.runs++
	return fn(ctx)
}

type PricingWorkerSuite struct {
	testutil.BaseServiceTestSuite
	worker  *PricingWorker
	pricing *flakyPricing
	wallet  service.WalletService
	tx      *passthroughTx

	team *team.Team
}

func TestPricingWorker(t *testing.T) {
	suite.Run(t, new(PricingWorkerSuite))
}

func newWorkerParams(s *testutil.BaseServiceTestSuite) service.ServiceParams {
	stores := s.GetStores()
	return service.ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		Clock:            s.GetClock(),
		Cache:            s.GetCache(),
		AppRepo:          stores.AppRepo,
		ReplayRepo:       stores.ReplayRepo,
		TeamRepo:         stores.TeamRepo,
		CatalogRepo:      stores.CatalogRepo,
		SubscriptionRepo: stores.SubscriptionRepo,
		BundleRepo:       stores.BundleRepo,
		ContractRepo:     stores.ContractRepo,
		PriceBookRepo:    stores.PriceBookRepo,
		EventRepo:        stores.EventRepo,
		LineItemRepo:     stores.LineItemRepo,
		LedgerRepo:       stores.LedgerRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		AuditRepo:        stores.AuditRepo,
	}
}

// newWorker builds a worker from the suite's current config, so tests
// can tune worker knobs before calling it.
func (s *PricingWorkerSuite) newWorker() *PricingWorker {
	return NewPricingWorker(
		s.GetConfig(),
		s.GetLogger(),
		s.GetClock(),
		s.tx,
		s.GetStores().EventRepo,
		s.GetStores().LineItemRepo,
		s.pricing,
		s.wallet,
	)
}

func (s *PricingWorkerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newWorkerParams(&s.BaseServiceTestSuite)

	ledger := service.NewLedgerService(params)
	s.wallet = service.NewWalletService(params, ledger, noopTrigger{})
	s.pricing = &flakyPricing{inner: service.NewPricingService(params)}
	s.tx = &passthroughTx{}

	s.worker = s.newWorker()

	s.team = &team.Team{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		AppID:           "app_1",
		Name:            "Acme",
		Kind:            types.TeamKindStandard,
		DefaultCurrency: "usd",
		BillingMode:     types.BillingModeWallet,
		BillToID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_ENTITY),
		BaseModel:       types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().TeamRepo.Create(s.GetContext(), s.team, "ext-1"))
}

// seedBooks installs matching per_unit rules in both books so pricing
// succeeds by default.
func (s *PricingWorkerSuite) seedBooks() {
	for kind, price := range map[types.PriceBookKind]float64{
		types.PriceBookKindCOGS:     0.1,
		types.PriceBookKindCustomer: 0.3,
	} {
		book := &pricebook.PriceBook{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE_BOOK),
			AppID:         "app_1",
			Kind:          kind,
			Currency:      "usd",
			EffectiveFrom: s.GetNow().AddDate(0, -1, 0),
			BaseModel:     types.GetDefaultBaseModel(s.GetNow()),
		}
		s.NoError(s.GetStores().PriceBookRepo.CreateBook(s.GetContext(), book))
		s.NoError(s.GetStores().PriceBookRepo.CreateRule(s.GetContext(), &pricebook.Rule{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE_RULE),
			PriceBookID: book.ID,
			Priority:    0,
			Match:       types.Payload{"eventType": "tokens.generated"},
			Rule: types.Payload{
				"type":      "per_unit",
				"unitPrice": price,
				"field":     "tokens",
			},
			CreatedAt: s.GetNow(),
		}))
	}
}

func (s *PricingWorkerSuite) seedEvent(id string) *events.UsageEvent {
	teamID := s.team.ID
	e := &events.UsageEvent{
		ID:             id,
		AppID:          "app_1",
		TeamID:         &teamID,
		BillToID:       s.team.BillToID,
		EventType:      "tokens.generated",
		Timestamp:      s.GetNow().Add(-time.Minute),
		IdempotencyKey: "idem-" + id,
		Payload:        types.Payload{"tokens": float64(10000)},
		Source:         "api",
		BaseModel:      types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().EventRepo.Create(s.GetContext(), e))
	return e
}

func (s *PricingWorkerSuite) lineItemsForEvent(eventID string) []*lineitem.BillableLineItem {
	items, err := s.GetStores().LineItemRepo.ListByBillTo(
		s.GetContext(), s.team.BillToID, s.GetNow().Add(-time.Hour), s.GetNow())
	s.NoError(err)
	out := []*lineitem.BillableLineItem{}
	for _, item := range items {
		if item.UsageEventID != nil && *item.UsageEventID == eventID {
			out = append(out, item)
		}
	}
	return out
}

func (s *PricingWorkerSuite) TestTickPricesAndDebits() {
	s.seedBooks()
	s.seedEvent("evt_1")

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Zero(result.Failed)

	items := s.lineItemsForEvent("evt_1")
	s.Len(items, 2)

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(e.PricedAt)

	// The CUSTOMER item was debited immediately; COGS never is.
	balance, err := s.wallet.GetBalance(s.GetContext(), "app_1", s.team.BillToID)
	s.NoError(err)
	s.Equal(int64(-3000), balance)

	// Nothing left for the next tick.
	result, err = s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Zero(result.Processed)
}

func (s *PricingWorkerSuite) TestPermanentFailureIsFlaggedNotRetried() {
	// No books seeded: pricing fails permanently.
	s.seedEvent("evt_1")

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(e.PricedAt)
	s.Empty(s.lineItemsForEvent("evt_1"))

	// Flagged events are terminal.
	result, err = s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Zero(result.Failed)
	s.Zero(result.Processed)
}

func (s *PricingWorkerSuite) TestTransientFailureBacksOffThenSucceeds() {
	s.seedBooks()
	s.seedEvent("evt_1")
	s.pricing.failuresLeft = 2

	// First attempt fails and reschedules one second out.
	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.Nil(e.PricedAt)
	s.Equal(1, e.RetryCount)
	s.True(e.NextRetryAt.Equal(s.GetNow().Add(time.Second)))

	// Not due yet.
	result, err = s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Zero(result.Failed)
	s.Zero(result.Processed)

	// Second attempt fails with a doubled delay.
	s.AdvanceClock(time.Second)
	result, err = s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)

	e, err = s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.Equal(2, e.RetryCount)
	s.True(e.NextRetryAt.Equal(s.GetNow().Add(2 * time.Second)))

	// Third attempt succeeds.
	s.AdvanceClock(2 * time.Second)
	result, err = s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(3, s.pricing.calls)
	s.Len(s.lineItemsForEvent("evt_1"), 2)
}

func (s *PricingWorkerSuite) TestRetriesExhaustFlagTheEvent() {
	s.seedBooks()
	s.seedEvent("evt_1")
	s.pricing.failuresLeft = 100

	for i := 0; i < 6; i++ {
		result, err := s.worker.Tick(s.GetContext())
		s.NoError(err)
		s.Equal(1, result.Failed)
		s.AdvanceClock(time.Minute)
	}

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(e.PricedAt)
	s.Equal(5, e.RetryCount)
	s.Empty(s.lineItemsForEvent("evt_1"))
}

func (s *PricingWorkerSuite) TestRecoveryGuardSkipsAlreadyEmittedEvents() {
	s.seedBooks()
	e := s.seedEvent("evt_1")

	// A previous run wrote the line item but crashed before marking the
	// event priced.
	eventID := e.ID
	s.NoError(s.GetStores().LineItemRepo.Create(s.GetContext(), &lineitem.BillableLineItem{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
		AppID:        "app_1",
		BillToID:     s.team.BillToID,
		TeamID:       s.team.ID,
		UsageEventID: &eventID,
		Timestamp:    e.Timestamp,
		PriceBookID:  "pb_1",
		AmountMinor:  3000,
		Currency:     "usd",
		CreatedAt:    s.GetNow(),
	}))

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Skipped)
	s.Zero(result.Processed)

	// No second set of line items was emitted.
	s.Len(s.lineItemsForEvent("evt_1"), 1)
	priced, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(priced.PricedAt)
}

func (s *PricingWorkerSuite) TestTickHonorsBatchOrder() {
	s.seedBooks()
	first := s.seedEvent("evt_1")
	s.AdvanceClock(time.Millisecond)
	second := s.seedEvent("evt_2")

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(2, result.Processed)
	_ = first
	_ = second
}

func (s *PricingWorkerSuite) TestConfiguredBatchSizeLimitsTick() {
	s.GetConfig().Worker.PricingBatchSize = 1
	worker := s.newWorker()

	s.seedBooks()
	s.seedEvent("evt_1")
	s.seedEvent("evt_2")

	result, err := worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)

	result, err = worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
}

func (s *PricingWorkerSuite) TestConfiguredMaxRetriesFlagsSooner() {
	s.GetConfig().Worker.PricingMaxRetries = 1
	worker := s.newWorker()

	s.seedBooks()
	s.seedEvent("evt_1")
	s.pricing.failuresLeft = 100

	result, err := worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.Nil(e.PricedAt)
	s.Equal(1, e.RetryCount)

	// The second failure exhausts the single allowed retry.
	s.AdvanceClock(time.Second)
	result, err = worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)

	e, err = s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(e.PricedAt)
	s.Empty(s.lineItemsForEvent("evt_1"))
}

func (s *PricingWorkerSuite) TestEmitAndStampShareOneTransaction() {
	s.seedBooks()
	s.seedEvent("evt_1")

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, s.tx.runs)

	e, err := s.GetStores().EventRepo.GetByID(s.GetContext(), "evt_1")
	s.NoError(err)
	s.NotNil(e.PricedAt)
	s.Len(s.lineItemsForEvent("evt_1"), 2)
}

func (s *PricingWorkerSuite) TestFailedPricingOpensNoTransaction() {
	// No books seeded: pricing fails permanently, nothing is written.
	s.seedEvent("evt_1")

	result, err := s.worker.Tick(s.GetContext())
	s.NoError(err)
	s.Equal(1, result.Failed)
	s.Zero(s.tx.runs)
}
