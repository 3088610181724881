package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

/* DeliveryJob is the unit of work flowing through the queue and the
 * worker pool. Payload holds the signed canonical envelope bytes and
 * is immutable across all attempts.
 */
type DeliveryJob struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	AttemptNumber int             `json:"attempt_number"` // 1-based
	MaxAttempts   int             `json:"max_attempts"`
}

// NewJob creates the first-attempt job for an envelope
func NewJob(envelope Envelope, maxAttempts int) (DeliveryJob, error) {
	payload, err := envelope.Bytes()
	if err != nil {
		return DeliveryJob{}, fmt.Errorf("serializing envelope: %w", err)
	}

	return DeliveryJob{
		ID:            uuid.New().String(),
		TenantID:      envelope.TenantID,
		EventType:     envelope.Event,
		Payload:       payload,
		Timestamp:     envelope.Timestamp,
		AttemptNumber: 1,
		MaxAttempts:   maxAttempts,
	}, nil
}

// NextAttempt returns a copy of the job advanced to the next attempt.
// The payload bytes are carried over untouched.
func (j DeliveryJob) NextAttempt() DeliveryJob {
	j.AttemptNumber++
	return j
}

// IsLastAttempt reports whether the current attempt is the final one
func (j DeliveryJob) IsLastAttempt() bool {
	return j.AttemptNumber >= j.MaxAttempts
}

// Encode serializes the job for queue transport
func (j DeliveryJob) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a job from its queue transport form
func DecodeJob(data []byte) (DeliveryJob, error) {
	var job DeliveryJob
	if err := json.Unmarshal(data, &job); err != nil {
		return DeliveryJob{}, fmt.Errorf("decoding job: %w", err)
	}
	return job, nil
}
