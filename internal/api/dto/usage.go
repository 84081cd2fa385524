package dto

import (
	"time"

	"github.com/meterline/meterline/internal/service"
	"github.com/meterline/meterline/internal/types"
)

// IngestEvent is one usage event in a batch
type IngestEvent struct {
	TeamID         string        `json:"teamId" validate:"required"`
	UserID         string        `json:"userId,omitempty"`
	EventType      string        `json:"eventType" validate:"required"`
	Timestamp      time.Time     `json:"timestamp" validate:"required"`
	IdempotencyKey string        `json:"idempotencyKey" validate:"required"`
	Payload        types.Payload `json:"payload,omitempty"`
	Source         string        `json:"source,omitempty"`
}

// IngestEventsRequest is the batch ingestion body. Batch size limits
// are enforced by the service against the configured maximum.
type IngestEventsRequest struct {
	Events []IngestEvent `json:"events" validate:"required,dive"`
}

func (r *IngestEventsRequest) ToService() []service.IngestEventRequest {
	batch := make([]service.IngestEventRequest, 0, len(r.Events))
	for _, e := range r.Events {
		req := service.IngestEventRequest{
			TeamID:         e.TeamID,
			EventType:      e.EventType,
			Timestamp:      e.Timestamp,
			IdempotencyKey: e.IdempotencyKey,
			Payload:        e.Payload,
			Source:         e.Source,
		}
		if e.UserID != "" {
			userID := e.UserID
			req.UserID = &userID
		}
		batch = append(batch, req)
	}
	return batch
}

// IngestEventsResponse reports the batch outcome
type IngestEventsResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// UsageQueryResponse is the aggregation result for usage and COGS
type UsageQueryResponse struct {
	TeamID  string                 `json:"teamId"`
	From    time.Time              `json:"from"`
	To      time.Time              `json:"to"`
	GroupBy string                 `json:"groupBy,omitempty"`
	Buckets []*service.UsageBucket `json:"buckets"`
}
