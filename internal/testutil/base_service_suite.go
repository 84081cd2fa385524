package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/cache"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/app"
	"github.com/meterline/meterline/internal/domain/audit"
	"github.com/meterline/meterline/internal/domain/auth"
	"github.com/meterline/meterline/internal/domain/bundle"
	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/contract"
	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/domain/lineitem"
	"github.com/meterline/meterline/internal/domain/pricebook"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/domain/team"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	AppRepo          app.Repository
	ReplayRepo       auth.ReplayRepository
	TeamRepo         team.Repository
	CatalogRepo      catalog.Repository
	SubscriptionRepo subscription.Repository
	BundleRepo       bundle.Repository
	ContractRepo     contract.Repository
	PriceBookRepo    pricebook.Repository
	EventRepo        events.Repository
	LineItemRepo     lineitem.Repository
	LedgerRepo       ledger.Repository
	InvoiceRepo      invoice.Repository
	AuditRepo        audit.Repository
}

// BaseServiceTestSuite provides common functionality for all service
// test suites: in-memory stores, a fixed clock, and a test context.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	cache  cache.Cache
	logger *logger.Logger
	config *config.Configuration
	clock  *types.FixedClock
	now    time.Time
}

// SetupSuite is called once before all tests
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.config = config.GetDefaultConfig()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.clock = &types.FixedClock{At: s.now}
	s.setupContext()
	s.setupStores()
	s.cache = cache.NewInMemoryCache()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
}

func (s *BaseServiceTestSuite) setupStores() {
	priceBooks := NewInMemoryPriceBookStore()
	s.stores = Stores{
		AppRepo:          NewInMemoryAppStore(s.clock),
		ReplayRepo:       NewInMemoryReplayStore(),
		TeamRepo:         NewInMemoryTeamStore(s.clock),
		CatalogRepo:      NewInMemoryCatalogStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		BundleRepo:       NewInMemoryBundleStore(),
		ContractRepo:     NewInMemoryContractStore(),
		PriceBookRepo:    priceBooks,
		EventRepo:        NewInMemoryEventStore(),
		LineItemRepo:     NewInMemoryLineItemStore(priceBooks),
		LedgerRepo:       NewInMemoryLedgerStore(s.clock),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		AuditRepo:        NewInMemoryAuditStore(),
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.AppRepo.(*InMemoryAppStore).Clear()
	s.stores.ReplayRepo.(*InMemoryReplayStore).Clear()
	s.stores.TeamRepo.(*InMemoryTeamStore).Clear()
	s.stores.CatalogRepo.(*InMemoryCatalogStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.BundleRepo.(*InMemoryBundleStore).Clear()
	s.stores.ContractRepo.(*InMemoryContractStore).Clear()
	s.stores.PriceBookRepo.(*InMemoryPriceBookStore).Clear()
	s.stores.EventRepo.(*InMemoryEventStore).Clear()
	s.stores.LineItemRepo.(*InMemoryLineItemStore).Clear()
	s.stores.LedgerRepo.(*InMemoryLedgerStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.AuditRepo.(*InMemoryAuditStore).Clear()
}

// ClearStores resets every in-memory store
func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the in-memory stores
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetClock returns the fixed test clock
func (s *BaseServiceTestSuite) GetClock() *types.FixedClock {
	return s.clock
}

// GetNow returns the current fixed time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.At
}

// AdvanceClock moves the fixed clock forward
func (s *BaseServiceTestSuite) AdvanceClock(d time.Duration) {
	s.clock.At = s.clock.At.Add(d)
}
