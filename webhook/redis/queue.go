package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelsud/webhook-courier/webhook"
	queuepkg "github.com/marcelsud/webhook-courier/webhook/queue"
)

/* Redis Streams implementation of queue.Queue
 * Uses a stream with a consumer group for ready jobs, a sorted set
 * scored by due time for retry-scheduled jobs, and a per-tenant list
 * for terminally failed jobs awaiting manual retry
 */

const (
	streamKey    = "courier:jobs"            // Ready jobs, one consumer group
	groupName    = "courier-workers"         // Consumer group name
	scheduledKey = "courier:scheduled"       // ZSET: member = encoded job, score = due unix ms
	failedPrefix = "courier:failed"          // List naming: courier:failed:{tenant_id}
	msgIDPrefix  = "courier:job"             // Key naming: courier:job:{job_id}:msgid
	jobField     = "job"                     // Stream entry field holding the encoded job

	promoteBatch  = 10             // Due jobs promoted per dequeue
	blockDuration = 1 * time.Second // XREADGROUP block, keeps workers responsive
	msgIDTTL      = 24 * time.Hour  // In-flight bookkeeping expiry
	failedCap     = 1000            // Max failed jobs retained per tenant
)

type Queue struct {
	client *redis.Client
}

// NewQueue connects to Redis and verifies the connection
func NewQueue(addr, password string, db int) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// Enqueue makes the job immediately available on the stream
func (q *Queue) Enqueue(ctx context.Context, job webhook.DeliveryJob) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}

	// Create consumer group if it doesn't exist
	q.client.XGroupCreateMkStream(ctx, streamKey, groupName, "0")
	// Ignore error if group already exists

	_, err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{jobField: string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("adding job to stream: %w", err)
	}

	return nil
}

// EnqueueAfter holds the job in the scheduled set until its delay
// elapses; Dequeue promotes due jobs back onto the stream
func (q *Queue) EnqueueAfter(ctx context.Context, job webhook.DeliveryJob, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, job)
	}

	data, err := job.Encode()
	if err != nil {
		return err
	}

	due := float64(time.Now().Add(delay).UnixMilli())
	err = q.client.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  due,
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling job: %w", err)
	}

	return nil
}

// Dequeue promotes due scheduled jobs, then blocks briefly on the
// stream. Returns nil when no job is available.
func (q *Queue) Dequeue(ctx context.Context, consumer string) (*webhook.DeliveryJob, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	// Create consumer group if it doesn't exist
	q.client.XGroupCreateMkStream(ctx, streamKey, groupName, "0")
	// Ignore error if group already exists

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumer,
		Streams:  []string{streamKey, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()
	if err == redis.Nil {
		// No jobs available
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	raw, ok := msg.Values[jobField].(string)
	if !ok {
		// Malformed entry, drop it
		q.client.XAck(ctx, streamKey, groupName, msg.ID)
		q.client.XDel(ctx, streamKey, msg.ID)
		return nil, nil
	}

	job, err := webhook.DecodeJob([]byte(raw))
	if err != nil {
		q.client.XAck(ctx, streamKey, groupName, msg.ID)
		q.client.XDel(ctx, streamKey, msg.ID)
		return nil, fmt.Errorf("decoding dequeued job: %w", err)
	}

	// Remember the stream message ID for acknowledgment
	msgIDKey := fmt.Sprintf("%s:%s:msgid", msgIDPrefix, job.ID)
	q.client.Set(ctx, msgIDKey, msg.ID, msgIDTTL)

	return &job, nil
}

// promoteDue moves scheduled jobs whose due time has passed onto the
// stream. ZRem decides the winner when several workers race on the
// same member.
func (q *Queue) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())

	members, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   fmt.Sprintf("%f", now),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("reading scheduled jobs: %w", err)
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, scheduledKey, member).Result()
		if err != nil {
			return fmt.Errorf("removing scheduled job: %w", err)
		}
		if removed == 0 {
			// Another worker promoted it first
			continue
		}

		_, err = q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey,
			Values: map[string]interface{}{jobField: member},
		}).Result()
		if err != nil {
			return fmt.Errorf("promoting scheduled job: %w", err)
		}
	}

	return nil
}

// Ack marks a dequeued job as fully processed and trims it from the
// stream
func (q *Queue) Ack(ctx context.Context, job webhook.DeliveryJob) error {
	msgIDKey := fmt.Sprintf("%s:%s:msgid", msgIDPrefix, job.ID)

	msgID, err := q.client.Get(ctx, msgIDKey).Result()
	if err == redis.Nil {
		// Already acknowledged or bookkeeping expired
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting message ID: %w", err)
	}

	if err := q.client.XAck(ctx, streamKey, groupName, msgID).Err(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	q.client.XDel(ctx, streamKey, msgID)
	q.client.Del(ctx, msgIDKey)

	return nil
}

// Fail records the job in the tenant's failed list, capped so a noisy
// tenant cannot grow without bound
func (q *Queue) Fail(ctx context.Context, job webhook.DeliveryJob) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}

	key := failedKey(job.TenantID)
	if err := q.client.LPush(ctx, key, string(data)).Err(); err != nil {
		return fmt.Errorf("recording failed job: %w", err)
	}
	q.client.LTrim(ctx, key, 0, failedCap-1)

	return nil
}

// RetryFailed drains the tenant's failed list back onto the stream,
// resetting each job to a fresh first attempt
func (q *Queue) RetryFailed(ctx context.Context, tenantID string) (int, error) {
	key := failedKey(tenantID)
	count := 0

	for {
		raw, err := q.client.RPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return count, fmt.Errorf("popping failed job: %w", err)
		}

		job, err := webhook.DecodeJob([]byte(raw))
		if err != nil {
			// Skip entries that no longer decode
			continue
		}

		job.AttemptNumber = 1
		if err := q.Enqueue(ctx, job); err != nil {
			return count, fmt.Errorf("re-enqueueing failed job: %w", err)
		}
		count++
	}

	return count, nil
}

// Depth returns pending/scheduled/in-flight counts for monitoring
func (q *Queue) Depth(ctx context.Context) (queuepkg.Depth, error) {
	total, err := q.client.XLen(ctx, streamKey).Result()
	if err != nil {
		return queuepkg.Depth{}, fmt.Errorf("reading stream length: %w", err)
	}

	scheduled, err := q.client.ZCard(ctx, scheduledKey).Result()
	if err != nil {
		return queuepkg.Depth{}, fmt.Errorf("reading scheduled count: %w", err)
	}

	var inFlight int64
	pending, err := q.client.XPending(ctx, streamKey, groupName).Result()
	if err == nil {
		inFlight = pending.Count
	}
	// A missing group just means nothing has been consumed yet

	ready := total - inFlight
	if ready < 0 {
		ready = 0
	}

	return queuepkg.Depth{
		Pending:   ready,
		Scheduled: scheduled,
		InFlight:  inFlight,
	}, nil
}

// Close closes the Redis connection
func (q *Queue) Close(ctx context.Context) error {
	return q.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (q *Queue) GetClient() *redis.Client {
	return q.client
}

func failedKey(tenantID string) string {
	return fmt.Sprintf("%s:%s", failedPrefix, tenantID)
}
