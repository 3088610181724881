package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-courier/tenant"
)

/* Dispatcher is the single inbound surface of the delivery core:
 * "notify tenant X that event Y happened with payload Z".
 *
 * Whether a job goes through the durable queue or is attempted
 * synchronously is decided once at process startup by the Delivery
 * implementation wired in, not per call.
 */

// Enqueuer hands a job to the durable queue backend
type Enqueuer interface {
	Enqueue(ctx context.Context, job DeliveryJob) error
}

// Delivery is the mode-selection seam between queued and direct sends
type Delivery interface {
	Deliver(ctx context.Context, cfg tenant.WebhookConfig, job DeliveryJob) (DispatchOutcome, error)
}

// Dispatcher routes domain events to tenant webhooks
type Dispatcher struct {
	store    tenant.Reader
	delivery Delivery
	executor *Executor
	clock    Clock
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher with explicit dependencies
func NewDispatcher(store tenant.Reader, delivery Delivery, executor *Executor, clock Clock, log zerolog.Logger) *Dispatcher {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Dispatcher{
		store:    store,
		delivery: delivery,
		executor: executor,
		clock:    clock,
		log:      log,
	}
}

// Notify informs the tenant's webhook endpoint that an event occurred.
// Missing config, inactive config, and filtered events return Skipped,
// which is a no-op success: most tenants have no subscriber for most
// events. Delivery failures never propagate back to the caller.
func (d *Dispatcher) Notify(ctx context.Context, tenantID, eventType string, data interface{}) (DispatchOutcome, error) {
	cfg, err := d.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return Skipped, nil
		}
		return Skipped, fmt.Errorf("loading webhook config: %w", err)
	}

	if !cfg.Active {
		return Skipped, nil
	}

	if !cfg.EventEnabled(eventType) {
		return Skipped, nil
	}

	envelope, err := NewEnvelope(tenantID, eventType, data, d.clock.Now())
	if err != nil {
		return Skipped, fmt.Errorf("building event envelope: %w", err)
	}

	job, err := NewJob(envelope, cfg.RetryPolicy.MaxAttempts())
	if err != nil {
		return Skipped, fmt.Errorf("building delivery job: %w", err)
	}

	outcome, err := d.delivery.Deliver(ctx, cfg, job)
	if err != nil {
		return outcome, fmt.Errorf("delivering job %s: %w", job.ID, err)
	}

	return outcome, nil
}

// Test performs one synchronous attempt and returns its immediate
// outcome to the caller. It bypasses the queue, retry scheduling, and
// the stats counters.
func (d *Dispatcher) Test(ctx context.Context, tenantID, eventType string, data interface{}) (AttemptResult, error) {
	cfg, err := d.store.Get(ctx, tenantID)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("loading webhook config: %w", err)
	}

	envelope, err := NewEnvelope(tenantID, eventType, data, d.clock.Now())
	if err != nil {
		return AttemptResult{}, fmt.Errorf("building event envelope: %w", err)
	}

	job, err := NewJob(envelope, 1)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("building delivery job: %w", err)
	}

	return d.executor.Attempt(ctx, cfg, job), nil
}

/* QueuedDelivery hands jobs to the durable queue and returns
 * immediately; the worker pool owns the attempt and retry lifecycle
 */
type QueuedDelivery struct {
	queue Enqueuer
}

// NewQueuedDelivery creates the queue-backed delivery mode
func NewQueuedDelivery(queue Enqueuer) *QueuedDelivery {
	return &QueuedDelivery{queue: queue}
}

// Deliver enqueues the job and reports Queued without blocking on the
// attempt
func (q *QueuedDelivery) Deliver(ctx context.Context, cfg tenant.WebhookConfig, job DeliveryJob) (DispatchOutcome, error) {
	if err := q.queue.Enqueue(ctx, job); err != nil {
		return Failed, fmt.Errorf("enqueueing job: %w", err)
	}
	return Queued, nil
}

/* DirectDelivery is the degraded mode used when no durable queue is
 * configured: one synchronous attempt, no retry scheduling across
 * restarts. The caller blocks for at most one attempt timeout.
 */
type DirectDelivery struct {
	executor *Executor
	stats    *Aggregator
	log      zerolog.Logger
}

// NewDirectDelivery creates the synchronous delivery mode
func NewDirectDelivery(executor *Executor, stats *Aggregator, log zerolog.Logger) *DirectDelivery {
	return &DirectDelivery{
		executor: executor,
		stats:    stats,
		log:      log,
	}
}

// Deliver attempts the job once and records the one-shot terminal
// outcome. HTTP failures are contained here, surfaced only through
// stats and logs.
func (d *DirectDelivery) Deliver(ctx context.Context, cfg tenant.WebhookConfig, job DeliveryJob) (DispatchOutcome, error) {
	result := d.executor.Attempt(ctx, cfg, job)
	d.stats.RecordOutcome(ctx, job.TenantID, result)

	if result.Success {
		d.log.Info().
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Int("status_code", result.StatusCode).
			Dur("response_time", result.ResponseTime).
			Msg("delivered synchronously")
		return Delivered, nil
	}

	d.log.Warn().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Str("error_kind", result.ErrorKind.String()).
		Str("error", result.Error).
		Msg("synchronous delivery failed, no retry in direct mode")
	return Failed, nil
}
