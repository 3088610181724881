package webhook

import (
	"math"
	"time"

	"github.com/marcelsud/webhook-courier/tenant"
)

/* Retry state machine for a delivery job:
 *
 *   Pending -> Attempting -> Delivered
 *                         -> RetryScheduled -> Pending
 *                         -> Exhausted
 *
 * NextState is a pure function so the whole retry policy is testable
 * without timers or a queue backend.
 */

// JobState represents the lifecycle state of a delivery job
type JobState int

const (
	StatePending JobState = iota + 1
	StateAttempting
	StateDelivered
	StateRetryScheduled
	StateExhausted
)

// String returns the string representation of the state
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateDelivered:
		return "delivered"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the job's lifecycle
func (s JobState) Terminal() bool {
	return s == StateDelivered || s == StateExhausted
}

// NextState decides the transition out of Attempting for the given
// attempt outcome. The returned delay is non-zero only for
// StateRetryScheduled.
func NextState(job DeliveryJob, result AttemptResult, policy tenant.RetryPolicy) (JobState, time.Duration) {
	if result.Success {
		return StateDelivered, 0
	}
	if result.ErrorKind == ErrSigningFailure {
		// Retrying cannot help a bad secret
		return StateExhausted, 0
	}
	if job.IsLastAttempt() {
		return StateExhausted, 0
	}
	return StateRetryScheduled, BackoffDelay(job.AttemptNumber, policy)
}

// BackoffDelay computes the delay before the attempt following the
// given failed attempt: initialDelay * multiplier^(attempt-1)
func BackoffDelay(attemptNumber int, policy tenant.RetryPolicy) time.Duration {
	factor := math.Pow(policy.BackoffMultiplier, float64(attemptNumber-1))
	return time.Duration(float64(policy.InitialDelay) * factor)
}
