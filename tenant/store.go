package tenant

import (
	"context"
	"errors"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * The delivery core only ever reads configuration and applies
 * stats deltas; creation and edits belong to the admin flow
 */

// ErrNotFound is returned when a tenant has no webhook configuration.
// Callers treat this as "nothing to deliver", not as a failure.
var ErrNotFound = errors.New("webhook config not found")

// StatsDelta describes one terminal delivery outcome to fold into a
// tenant's rolling counters
type StatsDelta struct {
	Success      bool
	ResponseTime time.Duration
	At           time.Time
}

// Reader provides read access to tenant webhook configuration
type Reader interface {
	Get(ctx context.Context, tenantID string) (WebhookConfig, error)
}

// StatsWriter applies terminal delivery outcomes to a tenant's stats.
/* ApplyStats must be atomic per tenant: two terminal outcomes racing
 * under the worker pool may not lose increments, and the moving
 * average must be serialized with the success counter it depends on
 */
type StatsWriter interface {
	ApplyStats(ctx context.Context, tenantID string, delta StatsDelta) error
}

// ConfigStore is the adapter the delivery core consumes
type ConfigStore interface {
	Reader
	StatsWriter
}
