package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/events"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// IngestEventRequest is one event in an ingestion batch
type IngestEventRequest struct {
	TeamID         string        `json:"team_id" validate:"required"`
	UserID         *string       `json:"user_id,omitempty"`
	EventType      string        `json:"event_type" validate:"required"`
	Timestamp      time.Time     `json:"timestamp" validate:"required"`
	IdempotencyKey string        `json:"idempotency_key" validate:"required"`
	Payload        types.Payload `json:"payload"`
	Source         string        `json:"source"`
}

// IngestResult is the per-batch outcome
type IngestResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// IngestionService persists deduplicated usage events for the pricing
// worker to pick up.
type IngestionService interface {
	// IngestBatch validates and stores a batch. A replayed idempotency
	// key counts as a duplicate, not an error.
	IngestBatch(ctx context.Context, appID string, batch []IngestEventRequest) (*IngestResult, error)
}

type ingestionService struct {
	ServiceParams
}

func NewIngestionService(params ServiceParams) IngestionService {
	return &ingestionService{ServiceParams: params}
}

func (s *ingestionService) IngestBatch(ctx context.Context, appID string, batch []IngestEventRequest) (*IngestResult, error) {
	if len(batch) == 0 {
		return nil, ierr.NewError("empty batch").
			WithHint("At least one event is required").
			Mark(ierr.ErrValidation)
	}
	if len(batch) > s.Config.Usage.MaxBatchSize {
		return nil, ierr.NewError("batch too large").
			WithHintf("Batch size %d exceeds the maximum of %d", len(batch), s.Config.Usage.MaxBatchSize).
			Mark(ierr.ErrValidation)
	}

	result := &IngestResult{}
	teams := map[string]string{} // team id -> bill-to id
	for _, req := range batch {
		billToID, ok := teams[req.TeamID]
		if !ok {
			t, err := s.TeamRepo.GetByID(ctx, req.TeamID)
			if err != nil {
				return nil, err
			}
			if t.AppID != appID {
				return nil, ierr.NewError("team not found").
					WithHintf("Team %s does not belong to app %s", req.TeamID, appID).
					Mark(ierr.ErrNotFound)
			}
			billToID = t.BillToID
			teams[req.TeamID] = billToID
		}

		teamID := req.TeamID
		event := &events.UsageEvent{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT),
			AppID:          appID,
			TeamID:         &teamID,
			UserID:         req.UserID,
			BillToID:       billToID,
			EventType:      req.EventType,
			Timestamp:      req.Timestamp,
			IdempotencyKey: req.IdempotencyKey,
			Payload:        req.Payload,
			Source:         req.Source,
			BaseModel:      types.GetDefaultBaseModel(s.Clock.Now()),
		}
		if event.Payload == nil {
			event.Payload = types.Payload{}
		}
		if err := event.Validate(); err != nil {
			return nil, err
		}

		if err := s.EventRepo.Create(ctx, event); err != nil {
			if ierr.IsAlreadyExists(err) {
				result.Duplicates++
				continue
			}
			return nil, err
		}
		result.Accepted++
	}

	s.Logger.Debugw("usage batch ingested",
		"app_id", appID,
		"accepted", result.Accepted,
		"duplicates", result.Duplicates,
	)
	return result, nil
}
