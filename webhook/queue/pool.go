package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook"
)

const (
	// DefaultWorkers is the worker pool size when none is configured
	DefaultWorkers = 5

	// errorBackoff is how long a worker sits out after a queue error
	errorBackoff = 1 * time.Second

	// heartbeatInterval is how often idle workers refresh liveness
	heartbeatInterval = 30 * time.Second
)

/* Pool is the fixed-size worker pool consuming delivery jobs. Each
 * worker pulls a job, runs one attempt through the executor, and
 * drives the retry state machine: re-enqueue with backoff, or record
 * the terminal outcome exactly once.
 *
 * No per-tenant ordering is guaranteed; two jobs for one tenant may
 * run concurrently on different workers.
 */
type Pool struct {
	queue    Queue
	store    tenant.Reader
	executor *webhook.Executor
	stats    *webhook.Aggregator
	workers  int
	log      zerolog.Logger

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewPool creates a worker pool over the given queue
func NewPool(q Queue, store tenant.Reader, executor *webhook.Executor, stats *webhook.Aggregator, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		queue:    q,
		store:    store,
		executor: executor,
		stats:    stats,
		workers:  workers,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. They run until Stop is called or the
// context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("starting delivery worker pool")

	for i := 0; i < p.workers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker(ctx, workerID)
		}()
	}
}

// Stop shuts the pool down and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping delivery worker pool")
	close(p.stop)
	p.wg.Wait()
	p.log.Info().Msg("delivery worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	hb, _ := p.queue.(Heartbeater)
	lastBeat := time.Time{}

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if hb != nil && time.Since(lastBeat) > heartbeatInterval {
			if err := hb.SetWorkerHeartbeat(ctx, workerID, "idle"); err != nil {
				p.log.Debug().Err(err).Str("worker_id", workerID).Msg("failed to set heartbeat")
			}
			lastBeat = time.Now()
		}

		job, err := p.queue.Dequeue(ctx, workerID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.log.Error().Err(err).Str("worker_id", workerID).Msg("failed to dequeue job")
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		if hb != nil {
			if err := hb.SetWorkerHeartbeat(ctx, workerID, "processing"); err != nil {
				p.log.Debug().Err(err).Str("worker_id", workerID).Msg("failed to set heartbeat")
			}
			lastBeat = time.Now()
		}

		p.process(ctx, *job)
	}
}

// process runs one attempt for the job and applies the resulting
// state transition
func (p *Pool) process(ctx context.Context, job webhook.DeliveryJob) {
	cfg, err := p.store.Get(ctx, job.TenantID)
	if err != nil {
		// Config deleted between dispatch and attempt: drop the job
		p.log.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Msg("dropping job without config")
		p.ack(ctx, job)
		return
	}

	if !cfg.Active {
		p.log.Info().
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Msg("dropping job for deactivated config")
		p.ack(ctx, job)
		return
	}

	result := p.executor.Attempt(ctx, cfg, job)
	state, delay := webhook.NextState(job, result, cfg.RetryPolicy)

	switch state {
	case webhook.StateDelivered:
		p.stats.RecordOutcome(ctx, job.TenantID, result)
		p.log.Info().
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Int("attempt", job.AttemptNumber).
			Int("status_code", result.StatusCode).
			Dur("response_time", result.ResponseTime).
			Msg("delivery succeeded")

	case webhook.StateRetryScheduled:
		next := job.NextAttempt()
		if err := p.queue.EnqueueAfter(ctx, next, delay); err != nil {
			p.log.Error().
				Err(err).
				Str("job_id", job.ID).
				Msg("failed to schedule retry")
		} else {
			p.log.Info().
				Str("job_id", job.ID).
				Str("tenant_id", job.TenantID).
				Int("attempt", job.AttemptNumber).
				Str("error_kind", result.ErrorKind.String()).
				Dur("retry_in", delay).
				Msg("delivery scheduled for retry")
		}

	case webhook.StateExhausted:
		p.stats.RecordOutcome(ctx, job.TenantID, result)
		if err := p.queue.Fail(ctx, job); err != nil {
			p.log.Error().
				Err(err).
				Str("job_id", job.ID).
				Msg("failed to record job in failed set")
		}
		p.log.Warn().
			Str("job_id", job.ID).
			Str("tenant_id", job.TenantID).
			Int("attempts", job.AttemptNumber).
			Str("error_kind", result.ErrorKind.String()).
			Str("error", result.Error).
			Msg("delivery permanently failed")
	}

	p.ack(ctx, job)
}

func (p *Pool) ack(ctx context.Context, job webhook.DeliveryJob) {
	if err := p.queue.Ack(ctx, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to ack job")
	}
}
