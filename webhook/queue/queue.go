package queue

import (
	"context"
	"time"

	"github.com/marcelsud/webhook-courier/webhook"
)

/* Queue is the durable work queue backing normal-mode delivery.
 * Jobs held here survive process restart if the backend itself is
 * durable; degraded (direct) mode never touches this interface.
 */

// Depth is the operational snapshot of the queue for monitoring
type Depth struct {
	// Pending is the number of jobs ready to be picked up
	Pending int64 `json:"pending"`

	// Scheduled is the number of jobs waiting out a retry delay
	Scheduled int64 `json:"scheduled"`

	// InFlight is the number of jobs currently held by workers
	InFlight int64 `json:"in_flight"`
}

// Producer adds jobs to the queue
type Producer interface {
	// Enqueue makes the job immediately available to workers
	Enqueue(ctx context.Context, job webhook.DeliveryJob) error

	// EnqueueAfter holds the job back until the delay elapses
	EnqueueAfter(ctx context.Context, job webhook.DeliveryJob, delay time.Duration) error
}

// Consumer pulls jobs for processing
type Consumer interface {
	/* Dequeue blocks briefly waiting for a job and returns nil when
	 * none is available; a dequeued job stays in-flight until Ack
	 */
	Dequeue(ctx context.Context, consumer string) (*webhook.DeliveryJob, error)

	// Ack marks a dequeued job as fully processed
	Ack(ctx context.Context, job webhook.DeliveryJob) error

	// Fail records the job in the tenant's failed set for manual retry
	Fail(ctx context.Context, job webhook.DeliveryJob) error
}

// Monitor exposes queue depth and the manual retry operation
type Monitor interface {
	// Depth returns pending/scheduled/in-flight counts
	Depth(ctx context.Context) (Depth, error)

	// RetryFailed re-enqueues the tenant's failed jobs, returning how many
	RetryFailed(ctx context.Context, tenantID string) (int, error)
}

// Queue is the full backend contract: produce, consume, monitor
type Queue interface {
	Producer
	Consumer
	Monitor
	Close(ctx context.Context) error
}

// Heartbeater records worker liveness for operational monitoring.
// Implemented by backends that can share state across processes.
type Heartbeater interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, status string) error
}
