package service

import (
	"context"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// EventSchema documents one supported usage event type for SDK authors
type EventSchema struct {
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Payload     types.Payload `json:"payload"`
}

// Capabilities is the static surface served by /v1/meta/capabilities
type Capabilities struct {
	APIVersion     string         `json:"apiVersion"`
	UsageIngestion UsageIngestion `json:"usageIngestion"`
	Meters         []string       `json:"meters"`
}

// UsageIngestion advertises the ingestion limits and event catalog
type UsageIngestion struct {
	MaxBatchSize        int      `json:"maxBatchSize"`
	SupportedEventTypes []string `json:"supportedEventTypes"`
}

// MetaService serves the schema catalog and capability manifest. The
// catalog is static; new event types ship with a release.
type MetaService interface {
	Capabilities(ctx context.Context) *Capabilities
	ListSchemas(ctx context.Context) []EventSchema
	GetSchema(ctx context.Context, eventType string) (*EventSchema, error)
}

// eventSchemas is the catalog of event types the pricing engine has
// rules for today.
var eventSchemas = []EventSchema{
	{
		Type:        "llm.completion",
		Description: "One model completion call",
		Payload: types.Payload{
			"inputTokens":  "number",
			"outputTokens": "number",
			"model":        "string",
		},
	},
	{
		Type:        "llm.embedding",
		Description: "One embedding call",
		Payload: types.Payload{
			"inputTokens": "number",
			"model":       "string",
		},
	},
	{
		Type:        "storage.bytes",
		Description: "Stored bytes sampled per hour",
		Payload: types.Payload{
			"bytes": "number",
		},
	},
	{
		Type:        "api.request",
		Description: "One billable API request",
		Payload: types.Payload{
			"route": "string",
		},
	},
}

// meterKeys are the aggregatable dimensions the entitlement layer knows
var meterKeys = []string{
	"llm.tokens.v1",
	"storage.bytes.v1",
	"api.requests.v1",
}

type metaService struct {
	ServiceParams
}

func NewMetaService(params ServiceParams) MetaService {
	return &metaService{ServiceParams: params}
}

func (s *metaService) Capabilities(ctx context.Context) *Capabilities {
	eventTypes := make([]string, 0, len(eventSchemas))
	for _, schema := range eventSchemas {
		eventTypes = append(eventTypes, schema.Type)
	}
	return &Capabilities{
		APIVersion: "v1",
		UsageIngestion: UsageIngestion{
			MaxBatchSize:        s.Config.Usage.MaxBatchSize,
			SupportedEventTypes: eventTypes,
		},
		Meters: meterKeys,
	}
}

func (s *metaService) ListSchemas(ctx context.Context) []EventSchema {
	out := make([]EventSchema, len(eventSchemas))
	copy(out, eventSchemas)
	return out
}

func (s *metaService) GetSchema(ctx context.Context, eventType string) (*EventSchema, error) {
	for _, schema := range eventSchemas {
		if schema.Type == eventType {
			s := schema
			return &s, nil
		}
	}
	return nil, ierr.NewError("unknown event type").
		WithHintf("No schema for event type %s", eventType).
		Mark(ierr.ErrNotFound)
}
