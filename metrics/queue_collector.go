package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook/queue"
	redisq "github.com/marcelsud/webhook-courier/webhook/redis"
)

// QueueCollector implements the Collector interface over the delivery
// queue and the tenant config store. The queue may be nil when the
// process runs in direct (no-queue) mode.
type QueueCollector struct {
	depth   queue.Monitor
	workers *redisq.Queue
	store   *tenant.Store
}

// NewQueueCollector creates a metrics collector
func NewQueueCollector(depth queue.Monitor, workers *redisq.Queue, store *tenant.Store) *QueueCollector {
	return &QueueCollector{
		depth:   depth,
		workers: workers,
		store:   store,
	}
}

// Collect gathers all metrics
func (c *QueueCollector) Collect(ctx context.Context) (Metrics, error) {
	depth, err := c.GetQueueDepth(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue depth: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	tenants, err := c.GetTenantStats(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting tenant stats: %w", err)
	}

	return Metrics{
		Queue:     depth,
		Workers:   workers,
		Tenants:   tenants,
		Timestamp: time.Now(),
	}, nil
}

// GetQueueDepth returns the queue counts, or zeros in direct mode
func (c *QueueCollector) GetQueueDepth(ctx context.Context) (queue.Depth, error) {
	if c.depth == nil {
		return queue.Depth{}, nil
	}
	return c.depth.Depth(ctx)
}

// GetActiveWorkers returns workers with a live heartbeat
func (c *QueueCollector) GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error) {
	if c.workers == nil {
		return nil, nil
	}

	heartbeats, err := c.workers.GetActiveWorkers(ctx)
	if err != nil {
		return nil, err
	}

	workers := make([]WorkerInfo, 0, len(heartbeats))
	for _, hb := range heartbeats {
		workers = append(workers, WorkerInfo{
			WorkerID:      hb.WorkerID,
			Status:        hb.Status,
			LastHeartbeat: hb.LastHeartbeat,
		})
	}

	return workers, nil
}

// GetTenantStats returns the rolling counters for every tenant
func (c *QueueCollector) GetTenantStats(ctx context.Context) ([]TenantDeliveryStats, error) {
	configs := c.store.List()

	stats := make([]TenantDeliveryStats, 0, len(configs))
	for _, cfg := range configs {
		stats = append(stats, TenantDeliveryStats{
			TenantID:              cfg.TenantID,
			TotalSent:             cfg.Stats.TotalSent,
			SuccessCount:          cfg.Stats.SuccessCount,
			FailureCount:          cfg.Stats.FailureCount,
			AverageResponseTimeMs: cfg.Stats.AverageResponseTimeMs,
			LastTriggeredAt:       cfg.Stats.LastTriggeredAt,
		})
	}

	return stats, nil
}
