package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook/signature"
)

const (
	// DefaultAttemptTimeout bounds one HTTP delivery attempt
	DefaultAttemptTimeout = 30 * time.Second

	// UserAgent is the fixed user-agent string on outgoing requests
	UserAgent = "webhook-courier/1.0"

	// maxResponseBytes caps how much of the response body is kept
	maxResponseBytes = 1024
)

/* Executor performs exactly one HTTP POST attempt against a tenant's
 * endpoint. It signs, sends, and classifies; it never decides on
 * retries and has no side effects beyond the outbound call.
 */
type Executor struct {
	client *http.Client
	log    zerolog.Logger
}

// NewExecutor creates an executor with the given per-attempt timeout
func NewExecutor(timeout time.Duration, log zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Executor{
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Attempt delivers the job's payload to the tenant's endpoint once.
// The payload bytes are replayed verbatim on retries, so the signature
// is identical across all attempts of one job.
func (e *Executor) Attempt(ctx context.Context, cfg tenant.WebhookConfig, job DeliveryJob) AttemptResult {
	start := time.Now()

	sigHeader, err := signature.SignHeader(job.Payload, []byte(cfg.Secret))
	if err != nil {
		return AttemptResult{
			ErrorKind: ErrSigningFailure,
			Error:     fmt.Sprintf("signing payload: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.EndpointURL, bytes.NewReader(job.Payload))
	if err != nil {
		return AttemptResult{
			ErrorKind:    ErrOther,
			Error:        fmt.Sprintf("creating request: %v", err),
			ResponseTime: time.Since(start),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Signature-256", sigHeader)
	req.Header.Set("X-Event-Type", job.EventType)
	req.Header.Set("X-Timestamp", job.Timestamp.Format(time.RFC3339Nano))
	req.Header.Set("X-Attempt", strconv.Itoa(job.AttemptNumber))

	// Tenant headers go last so they may override the defaults
	for _, h := range cfg.CustomHeaders {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return AttemptResult{
			ErrorKind:    classifyTransportError(err),
			Error:        fmt.Sprintf("request failed: %v", err),
			ResponseTime: time.Since(start),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	e.log.Debug().
		Str("job_id", job.ID).
		Str("tenant_id", job.TenantID).
		Int("attempt", job.AttemptNumber).
		Int("status_code", resp.StatusCode).
		Msg("delivery attempt completed")

	result := AttemptResult{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
		ResponseTime: time.Since(start),
	}

	if IsSuccess(resp.StatusCode) {
		result.Success = true
	} else {
		result.ErrorKind = ErrHTTPStatus
		result.Error = fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	}

	return result
}

// classifyTransportError maps a client error onto the failure taxonomy
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}

	return ErrOther
}
