package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

/* Envelope is the wire payload delivered to tenant endpoints:
 * {"event":"...","timestamp":"...","tenantId":"...","data":{...}}
 *
 * It is serialized exactly once, when the job is created. Retries
 * replay the same bytes verbatim so the signature stays valid and
 * receivers can deduplicate by payload hash or timestamp.
 */
type Envelope struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	TenantID  string          `json:"tenantId"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope builds an event envelope for the given tenant and event
func NewEnvelope(tenantID, eventType string, data interface{}, now time.Time) (Envelope, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling event data: %w", err)
	}

	return Envelope{
		Event:     eventType,
		Timestamp: now.UTC(),
		TenantID:  tenantID,
		Data:      dataBytes,
	}, nil
}

// MarshalJSON returns the JSON encoding with an ISO-8601 timestamp
func (e Envelope) MarshalJSON() ([]byte, error) {
	type Alias Envelope
	return json.Marshal(&struct {
		Event     string `json:"event"`
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Event:     e.Event,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON parses the JSON-encoded envelope
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type Alias Envelope
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshaling envelope: %w", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
	if err != nil {
		timestamp, err = time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parsing timestamp: %w", err)
		}
	}
	e.Timestamp = timestamp

	return nil
}

// Bytes returns the canonical byte serialization that is signed and
// transmitted. The returned bytes are minified (no extra whitespace).
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
