package webhook

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-courier/tenant"
)

/* Aggregator folds terminal delivery outcomes into the tenant's
 * rolling counters. It is invoked exactly once per job: on success at
 * any attempt, or on the final exhausted failure. Intermediate retry
 * failures do not touch the stats.
 */
type Aggregator struct {
	store tenant.StatsWriter
	clock Clock
	log   zerolog.Logger
}

// NewAggregator creates a stats aggregator writing through the store
func NewAggregator(store tenant.StatsWriter, clock Clock, log zerolog.Logger) *Aggregator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Aggregator{
		store: store,
		clock: clock,
		log:   log,
	}
}

// RecordOutcome applies one terminal outcome. A config deleted between
// dispatch and completion makes this a logged no-op, never a retry.
func (a *Aggregator) RecordOutcome(ctx context.Context, tenantID string, result AttemptResult) {
	delta := tenant.StatsDelta{
		Success:      result.Success,
		ResponseTime: result.ResponseTime,
		At:           a.clock.Now(),
	}

	err := a.store.ApplyStats(ctx, tenantID, delta)
	if err == nil {
		return
	}

	if errors.Is(err, tenant.ErrNotFound) {
		a.log.Debug().
			Str("tenant_id", tenantID).
			Msg("config gone before stats update, skipping")
		return
	}

	a.log.Error().
		Err(err).
		Str("tenant_id", tenantID).
		Msg("failed to update delivery stats")
}
