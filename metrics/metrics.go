package metrics

import (
	"context"
	"time"

	"github.com/marcelsud/webhook-courier/webhook/queue"
)

// Metrics represents the current state of the delivery system.
type Metrics struct {
	// Queue holds pending/scheduled/in-flight job counts
	Queue queue.Depth `json:"queue"`

	// Workers lists the pool workers with a live heartbeat
	Workers []WorkerInfo `json:"workers"`

	// Tenants holds per-tenant rolling delivery counters
	Tenants []TenantDeliveryStats `json:"tenants"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// WorkerInfo represents information about an active pool worker.
type WorkerInfo struct {
	// WorkerID is a unique identifier for the worker
	WorkerID string `json:"worker_id"`

	// Status is the current status of the worker (e.g., "idle", "processing")
	Status string `json:"status"`

	// LastHeartbeat is the timestamp of the last heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// TenantDeliveryStats represents one tenant's rolling delivery counters.
type TenantDeliveryStats struct {
	TenantID              string    `json:"tenant_id"`
	TotalSent             int64     `json:"total_sent"`
	SuccessCount          int64     `json:"success_count"`
	FailureCount          int64     `json:"failure_count"`
	AverageResponseTimeMs float64   `json:"average_response_time_ms"`
	LastTriggeredAt       time.Time `json:"last_triggered_at"`
}

// Collector defines the interface for collecting metrics from the delivery system.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueDepth returns pending/scheduled/in-flight job counts
	GetQueueDepth(ctx context.Context) (queue.Depth, error)

	// GetActiveWorkers returns information about live pool workers
	GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error)

	// GetTenantStats returns per-tenant delivery counters
	GetTenantStats(ctx context.Context) ([]TenantDeliveryStats, error)
}
