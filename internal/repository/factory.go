package repository

import (
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
	"github.com/meterline/meterline/internal/postgres"
	postgresRepo "github.com/meterline/meterline/internal/repository/postgres"
	"github.com/meterline/meterline/internal/types"
)

func NewAppRepository(db *postgres.DB, logger *logger.Logger, clock types.Clock) app.Repository {
	return postgresRepo.NewAppRepository(db, logger, clock)
}

func NewReplayRepository(db *postgres.DB, logger *logger.Logger) auth.ReplayRepository {
	return postgresRepo.NewReplayRepository(db, logger)
}

func NewTeamRepository(db *postgres.DB, logger *logger.Logger, clock types.Clock) team.Repository {
	return postgresRepo.NewTeamRepository(db, logger, clock)
}

func NewCatalogRepository(db *postgres.DB, logger *logger.Logger) catalog.Repository {
	return postgresRepo.NewCatalogRepository(db, logger)
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewBundleRepository(db *postgres.DB, logger *logger.Logger) bundle.Repository {
	return postgresRepo.NewBundleRepository(db, logger)
}

func NewContractRepository(db *postgres.DB, logger *logger.Logger) contract.Repository {
	return postgresRepo.NewContractRepository(db, logger)
}

func NewPriceBookRepository(db *postgres.DB, logger *logger.Logger) pricebook.Repository {
	return postgresRepo.NewPriceBookRepository(db, logger)
}

func NewEventRepository(db *postgres.DB, logger *logger.Logger) events.Repository {
	return postgresRepo.NewEventRepository(db, logger)
}

func NewLineItemRepository(db *postgres.DB, logger *logger.Logger) lineitem.Repository {
	return postgresRepo.NewLineItemRepository(db, logger)
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger, clock types.Clock) ledger.Repository {
	return postgresRepo.NewLedgerRepository(db, logger, clock)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewAuditRepository(db *postgres.DB, logger *logger.Logger) audit.Repository {
	return postgresRepo.NewAuditRepository(db, logger)
}
