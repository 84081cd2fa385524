package types

import (
	"database/sql/driver"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata is a string map persisted as JSONB
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported metadata scan type %T", value)
	}
	return json.Unmarshal(b, m)
}

// Payload is a free-form JSON object carried on usage events and
// pricing snapshots. It is opaque at the boundary; strict decoding
// happens at the edge of the component that consumes it.
type Payload map[string]interface{}

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = Payload{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported payload scan type %T", value)
	}
	return json.Unmarshal(b, p)
}

// FeatureFlags is a feature-name → enabled map persisted as JSONB
type FeatureFlags map[string]bool

func (f FeatureFlags) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *FeatureFlags) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureFlags{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported feature flags scan type %T", value)
	}
	return json.Unmarshal(b, f)
}

// Number reads a numeric payload field. JSON numbers decode as float64;
// integers encoded as strings are not accepted.
func (p Payload) Number(field string) (float64, bool) {
	v, ok := p[field]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
