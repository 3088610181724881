package webhook

import (
	"fmt"
	"time"
)

/* DispatchOutcome tells the caller what happened to its event.
 * Skipped is the common case: most tenants and events legitimately
 * have no subscriber, so it is not an error.
 */
type DispatchOutcome int

const (
	Skipped DispatchOutcome = iota + 1
	Queued
	Delivered
	Failed
)

// String returns the string representation of the outcome
func (o DispatchOutcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Queued:
		return "queued"
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validate checks if the outcome is valid
func (o DispatchOutcome) Validate() error {
	if o < Skipped || o > Failed {
		return fmt.Errorf("invalid dispatch outcome: %d", o)
	}
	return nil
}

/* ErrorKind classifies a failed attempt. Transport-class kinds are
 * retried per the backoff policy; a signing failure never is, since
 * retrying cannot help a missing or corrupt secret.
 */
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrHTTPStatus
	ErrTimeout
	ErrConnectionRefused
	ErrSigningFailure
	ErrOther
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrHTTPStatus:
		return "http_status"
	case ErrTimeout:
		return "timeout"
	case ErrConnectionRefused:
		return "connection_refused"
	case ErrSigningFailure:
		return "signing_failure"
	case ErrOther:
		return "other"
	default:
		return "unknown"
	}
}

// Retryable reports whether the failure class is worth another attempt
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrHTTPStatus, ErrTimeout, ErrConnectionRefused, ErrOther:
		return true
	default:
		return false
	}
}

// AttemptResult is the classified outcome of one HTTP delivery attempt
type AttemptResult struct {
	Success      bool          `json:"success"`
	StatusCode   int           `json:"status_code,omitempty"`
	ResponseTime time.Duration `json:"-"`
	ResponseBody string        `json:"response_body,omitempty"` // capped at 1KB
	ErrorKind    ErrorKind     `json:"-"`
	Error        string        `json:"error,omitempty"`
}

// IsSuccess reports whether a status code counts as delivered
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
