package service

import (
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
	"github.com/meterline/meterline/internal/security"
	"github.com/meterline/meterline/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  types.Clock
	Cache  cache.Cache
	Vault  security.EncryptionService

	// Repositories
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

// NewServiceParams assembles the shared service dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	clock types.Clock,
	cache cache.Cache,
	vault security.EncryptionService,
	appRepo app.Repository,
	replayRepo auth.ReplayRepository,
	teamRepo team.Repository,
	catalogRepo catalog.Repository,
	subscriptionRepo subscription.Repository,
	bundleRepo bundle.Repository,
	contractRepo contract.Repository,
	priceBookRepo pricebook.Repository,
	eventRepo events.Repository,
	lineItemRepo lineitem.Repository,
	ledgerRepo ledger.Repository,
	invoiceRepo invoice.Repository,
	auditRepo audit.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		Clock:            clock,
		Cache:            cache,
		Vault:            vault,
		AppRepo:          appRepo,
		ReplayRepo:       replayRepo,
		TeamRepo:         teamRepo,
		CatalogRepo:      catalogRepo,
		SubscriptionRepo: subscriptionRepo,
		BundleRepo:       bundleRepo,
		ContractRepo:     contractRepo,
		PriceBookRepo:    priceBookRepo,
		EventRepo:        eventRepo,
		LineItemRepo:     lineItemRepo,
		LedgerRepo:       ledgerRepo,
		InvoiceRepo:      invoiceRepo,
		AuditRepo:        auditRepo,
	}
}
