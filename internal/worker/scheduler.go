package worker

import (
	"context"

	"github.com/robfig/cron"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

const (
	defaultPricingPollInterval = "5s"
	defaultPeriodCloseSchedule = "0 0 2 * * *"
	defaultBatchDebitSchedule  = "0 */15 * * * *"
)

// Scheduler runs the recurring jobs: the pricing poll, the batch debit
// sweep, and the period close. All three are idempotent, so
// overlapping or replayed runs are harmless. Schedules come from
// worker config, with sane defaults when unset.
type Scheduler struct {
	cron        *cron.Cron
	logger      *logger.Logger
	clock       types.Clock
	pricing     *PricingWorker
	wallet      service.WalletService
	periodClose service.PeriodCloseService

	pollSpec        string
	batchDebitSpec  string
	periodCloseSpec string
}

func NewScheduler(
	cfg *config.Configuration,
	logger *logger.Logger,
	clock types.Clock,
	pricing *PricingWorker,
	wallet service.WalletService,
	periodClose service.PeriodCloseService,
) *Scheduler {
	pollInterval := cfg.Worker.PricingPollInterval
	if pollInterval == "" {
		pollInterval = defaultPricingPollInterval
	}
	batchDebitSpec := cfg.Worker.BatchDebitSchedule
	if batchDebitSpec == "" {
		batchDebitSpec = defaultBatchDebitSchedule
	}
	periodCloseSpec := cfg.Worker.PeriodCloseSchedule
	if periodCloseSpec == "" {
		periodCloseSpec = defaultPeriodCloseSchedule
	}

	return &Scheduler{
		cron:            cron.New(),
		logger:          logger,
		clock:           clock,
		pricing:         pricing,
		wallet:          wallet,
		periodClose:     periodClose,
		pollSpec:        "@every " + pollInterval,
		batchDebitSpec:  batchDebitSpec,
		periodCloseSpec: periodCloseSpec,
	}
}

func (s *Scheduler) Start() error {
	if err := s.cron.AddFunc(s.pollSpec, s.pricingTick); err != nil {
		return err
	}
	if err := s.cron.AddFunc(s.batchDebitSpec, s.batchDebit); err != nil {
		return err
	}
	if err := s.cron.AddFunc(s.periodCloseSpec, s.closePeriods); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infow("scheduler started",
		"pricing_poll", s.pollSpec,
		"batch_debit", s.batchDebitSpec,
		"period_close", s.periodCloseSpec,
	)
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Infow("scheduler stopped")
}

func (s *Scheduler) pricingTick() {
	result, err := s.pricing.Tick(context.Background())
	if err != nil {
		s.logger.Errorw("pricing tick failed", "error", err)
		return
	}
	if result.Processed > 0 || result.Failed > 0 {
		s.logger.Infow("pricing tick",
			"processed", result.Processed,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
}

func (s *Scheduler) batchDebit() {
	result, err := s.wallet.DebitBatch(context.Background())
	if err != nil {
		s.logger.Errorw("batch debit sweep failed", "error", err)
		return
	}
	s.logger.Infow("batch debit sweep",
		"batches", result.Batches,
		"line_items", result.LineItems,
		"duplicates", result.Duplicates,
	)
}

func (s *Scheduler) closePeriods() {
	result, err := s.periodClose.Run(context.Background(), s.clock.Now())
	if err != nil {
		s.logger.Errorw("period close run failed", "error", err)
		return
	}
	s.logger.Infow("period close run",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}
