package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc"
	"go.uber.org/fx"

	"github.com/meterline/meterline/internal/api"
	v1 "github.com/meterline/meterline/internal/api/v1"
	"github.com/meterline/meterline/internal/auth"
	"github.com/meterline/meterline/internal/cache"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/catalog"
	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/lineitem"
	"github.com/meterline/meterline/internal/domain/team"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/integration/stripe"
	stripewebhook "github.com/meterline/meterline/internal/integration/stripe/webhook"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/repository"
	"github.com/meterline/meterline/internal/security"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/worker"
)

func init() {
	// The whole system reasons in UTC; billing periods depend on it.
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			provideClock,
			cache.NewInMemoryCache,
			security.NewEncryptionService,
			provideDB,

			// Repositories
			repository.NewAppRepository,
			repository.NewReplayRepository,
			repository.NewTeamRepository,
			repository.NewCatalogRepository,
			repository.NewSubscriptionRepository,
			repository.NewBundleRepository,
			repository.NewContractRepository,
			repository.NewPriceBookRepository,
			repository.NewEventRepository,
			repository.NewLineItemRepository,
			repository.NewLedgerRepository,
			repository.NewInvoiceRepository,
			repository.NewAuditRepository,

			// Services
			service.NewServiceParams,
			service.NewLedgerService,
			service.NewEntitlementService,
			service.NewAppService,
			service.NewTeamService,
			service.NewIngestionService,
			service.NewPricingService,
			service.NewUsageQueryService,
			service.NewMetaService,
			service.NewContractService,
			service.NewPeriodCloseService,
			service.NewSubscriptionService,
			provideWalletService,

			// Auth and gateway
			auth.NewTokenEngine,
			stripe.NewGateway,
			provideStripeDriver,
			stripewebhook.NewHandler,

			// Workers
			providePricingWorker,
			worker.NewScheduler,

			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideClock() types.Clock {
	return types.RealClock()
}

// provideDB connects to the store, retrying the initial ping so the
// service survives a database that is still coming up.
func provideDB(cfg *config.Configuration, log *logger.Logger) (*postgres.DB, error) {
	var db *postgres.DB
	connect := func() error {
		var err error
		db, err = postgres.NewDB(cfg, log)
		if err != nil {
			log.Warnw("store connection failed, retrying", "error", err)
			return err
		}
		return db.Ping(context.Background())
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not reach the database").
			Mark(ierr.ErrSystem)
	}
	return db, nil
}

func provideStripeDriver(
	gateway stripe.Gateway,
	cfg *config.Configuration,
	log *logger.Logger,
	clock types.Clock,
	teams team.Repository,
	catalogRepo catalog.Repository,
	ledger service.LedgerService,
) *stripe.Driver {
	return stripe.NewDriver(gateway, cfg, log, clock, teams, catalogRepo, ledger)
}

func providePricingWorker(
	cfg *config.Configuration,
	log *logger.Logger,
	clock types.Clock,
	db *postgres.DB,
	eventsRepo events.Repository,
	lineItems lineitem.Repository,
	pricing service.PricingService,
	wallet service.WalletService,
) *worker.PricingWorker {
	return worker.NewPricingWorker(cfg, log, clock, db, eventsRepo, lineItems, pricing, wallet)
}

func provideWalletService(
	params service.ServiceParams,
	ledger service.LedgerService,
	driver *stripe.Driver,
) service.WalletService {
	return service.NewWalletService(params, ledger, driver)
}

func provideHandlers(
	log *logger.Logger,
	clock types.Clock,
	db *postgres.DB,
	apps service.AppService,
	teams service.TeamService,
	ingestion service.IngestionService,
	queries service.UsageQueryService,
	entitlements service.EntitlementService,
	meta service.MetaService,
	contracts service.ContractService,
	periodClose service.PeriodCloseService,
	driver *stripe.Driver,
	webhooks *stripewebhook.Handler,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(db),
		App:         v1.NewAppHandler(apps, log),
		Team:        v1.NewTeamHandler(teams, log),
		Usage:       v1.NewUsageHandler(ingestion, queries, log),
		Entitlement: v1.NewEntitlementHandler(entitlements, log),
		Checkout:    v1.NewCheckoutHandler(driver, log),
		Meta:        v1.NewMetaHandler(meta, log),
		Billing:     v1.NewBillingHandler(contracts, log),
		Invoice:     v1.NewInvoiceHandler(periodClose, clock, log),
		Webhook:     v1.NewWebhookHandler(webhooks, log),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, engine *auth.TokenEngine) *gin.Engine {
	return api.NewRouter(handlers, cfg, engine)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *gin.Engine,
	scheduler *worker.Scheduler,
	db *postgres.DB,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}
	var wg conc.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := scheduler.Start(); err != nil {
				return err
			}
			wg.Go(func() {
				log.Infow("API server listening", "address", cfg.Server.Address)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("server failed: %v", err)
				}
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			if err := srv.Shutdown(ctx); err != nil {
				log.Errorw("server shutdown failed", "error", err)
			}
			wg.Wait()
			db.Close()
			return nil
		},
	})
}
