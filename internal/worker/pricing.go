package worker

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/events"
	"github.com/meterline/meterline/internal/domain/lineitem"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// TickResult counts one poll of the pricing worker
type TickResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// TxRunner runs fn inside one store transaction so the line-item
// insert and the priced_at stamp commit together. Production wires
// *postgres.DB; the in-memory stores commit each call, so tests use a
// passthrough.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	defaultPricingBatchSize  = 50
	defaultPricingMaxRetries = 5
)

// PricingWorker polls unpriced usage events, prices them, emits line
// items, and triggers immediate wallet debits. Duplicate delivery is
// safe: the per-event guard recovers events whose line items were
// written but whose priced_at update was lost.
type PricingWorker struct {
	logger    *logger.Logger
	clock     types.Clock
	runner    TxRunner
	events    events.Repository
	lineItems lineitem.Repository
	pricing   service.PricingService
	wallet    service.WalletService

	batchSize  int
	maxRetries int
	retryBase  time.Duration
}

func NewPricingWorker(
	cfg *config.Configuration,
	logger *logger.Logger,
	clock types.Clock,
	runner TxRunner,
	eventsRepo events.Repository,
	lineItems lineitem.Repository,
	pricing service.PricingService,
	wallet service.WalletService,
) *PricingWorker {
	batchSize := cfg.Worker.PricingBatchSize
	if batchSize <= 0 {
		batchSize = defaultPricingBatchSize
	}
	maxRetries := cfg.Worker.PricingMaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultPricingMaxRetries
	}

	return &PricingWorker{
		logger:     logger,
		clock:      clock,
		runner:     runner,
		events:     eventsRepo,
		lineItems:  lineItems,
		pricing:    pricing,
		wallet:     wallet,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryBase:  time.Second,
	}
}

// Tick prices one batch of due events
func (w *PricingWorker) Tick(ctx context.Context) (*TickResult, error) {
	now := w.clock.Now()
	due, err := w.events.ListUnpriced(ctx, now, w.batchSize)
	if err != nil {
		return nil, err
	}

	result := &TickResult{}
	for _, event := range due {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		outcome, err := w.priceOne(ctx, event)
		switch {
		case err != nil:
			result.Failed++
		case outcome == outcomeSkipped:
			result.Skipped++
		default:
			result.Processed++
		}
	}
	return result, nil
}

type tickOutcome int

const (
	outcomeProcessed tickOutcome = iota
	outcomeSkipped
)

func (w *PricingWorker) priceOne(ctx context.Context, event *events.UsageEvent) (tickOutcome, error) {
	// Recovery guard: line items already exist when a concurrent
	// replica emitted them between the poll and this call, or when an
	// older run lost the priced_at stamp.
	exists, err := w.lineItems.ExistsForEvent(ctx, event.ID)
	if err != nil {
		return outcomeSkipped, w.scheduleRetry(ctx, event, err)
	}
	if exists {
		if err := w.events.MarkPriced(ctx, event.ID, w.clock.Now()); err != nil {
			return outcomeSkipped, err
		}
		return outcomeSkipped, nil
	}

	drafts, err := w.pricing.PriceEvent(ctx, event)
	if err != nil {
		if ierr.IsPermanentPricingFailure(err) {
			// Flag and forget: the event is terminal without line items.
			w.logger.Errorw("permanent pricing failure",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
			if markErr := w.events.MarkPriced(ctx, event.ID, w.clock.Now()); markErr != nil {
				return outcomeSkipped, markErr
			}
			return outcomeSkipped, err
		}
		return outcomeSkipped, w.scheduleRetry(ctx, event, err)
	}

	items := w.materialize(event, drafts)
	pricedAt := w.clock.Now()
	err = w.runner.WithTx(ctx, func(ctx context.Context) error {
		if err := w.lineItems.CreateBulk(ctx, items); err != nil {
			return err
		}
		return w.events.MarkPriced(ctx, event.ID, pricedAt)
	})
	if err != nil {
		return outcomeSkipped, w.scheduleRetry(ctx, event, err)
	}

	// Wallet debits happen after the pricing commit. They are
	// idempotent, so a failure here self-heals on the batch sweep.
	for _, item := range items {
		if _, err := w.wallet.DebitImmediate(ctx, item.ID); err != nil {
			w.logger.Warnw("immediate wallet debit failed",
				"line_item_id", item.ID,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
	return outcomeProcessed, nil
}

func (w *PricingWorker) materialize(event *events.UsageEvent, drafts []service.LineItemDraft) []*lineitem.BillableLineItem {
	items := make([]*lineitem.BillableLineItem, 0, len(drafts))
	eventID := event.ID
	teamID := ""
	if event.TeamID != nil {
		teamID = *event.TeamID
	}
	for _, draft := range drafts {
		items = append(items, &lineitem.BillableLineItem{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
			AppID:          event.AppID,
			BillToID:       event.BillToID,
			TeamID:         teamID,
			UserID:         event.UserID,
			UsageEventID:   &eventID,
			Timestamp:      event.Timestamp,
			PriceBookID:    draft.PriceBookID,
			PriceRuleID:    draft.PriceRuleID,
			AmountMinor:    draft.AmountMinor,
			Currency:       draft.Currency,
			Description:    draft.Description,
			InputsSnapshot: draft.InputsSnapshot,
			CreatedAt:      w.clock.Now(),
		})
	}
	return items
}

// scheduleRetry reschedules a transient failure with exponential
// backoff; past maxRetries the event is flagged permanent.
func (w *PricingWorker) scheduleRetry(ctx context.Context, event *events.UsageEvent, cause error) error {
	retryCount := event.RetryCount + 1
	if retryCount > w.maxRetries {
		w.logger.Errorw("pricing retries exhausted",
			"event_id", event.ID,
			"retry_count", retryCount,
			"error", cause,
		)
		if err := w.events.MarkPriced(ctx, event.ID, w.clock.Now()); err != nil {
			return err
		}
		return cause
	}

	delay := w.retryBase << (retryCount - 1)
	nextRetryAt := w.clock.Now().Add(delay)
	if err := w.events.ScheduleRetry(ctx, event.ID, retryCount, nextRetryAt); err != nil {
		return err
	}

	w.logger.Warnw("transient pricing failure rescheduled",
		"event_id", event.ID,
		"retry_count", retryCount,
		"next_retry_at", nextRetryAt,
		"error", cause,
	)
	return cause
}
