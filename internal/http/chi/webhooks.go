package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook"
	"github.com/marcelsud/webhook-courier/webhook/queue"
)

/* HTTP layer DTOs for the courier API
 * Separate from domain entities to avoid leaking internal structure
 */

// eventRequest represents an incoming domain event to dispatch
type eventRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// dispatchResponse represents the outcome of a notify call
type dispatchResponse struct {
	TenantID string `json:"tenant_id"`
	Event    string `json:"event"`
	Outcome  string `json:"outcome"`
}

// testResponse represents the immediate result of a test delivery
type testResponse struct {
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	ErrorKind      string `json:"error_kind,omitempty"`
	Error          string `json:"error,omitempty"`
}

// retryFailedResponse reports how many jobs were re-enqueued
type retryFailedResponse struct {
	TenantID string `json:"tenant_id"`
	Retried  int    `json:"retried"`
}

// tenantStatsResponse exposes the rolling counters; the signing secret
// is never serialized
type tenantStatsResponse struct {
	TenantID              string     `json:"tenant_id"`
	Active                bool       `json:"active"`
	TotalSent             int64      `json:"total_sent"`
	SuccessCount          int64      `json:"success_count"`
	FailureCount          int64      `json:"failure_count"`
	AverageResponseTimeMs float64    `json:"average_response_time_ms"`
	LastTriggeredAt       *time.Time `json:"last_triggered_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// postEvent handles POST /v1/tenants/{tenant_id}/events
func postEvent(dispatcher *webhook.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenant_id")

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Event == "" {
			respondError(w, http.StatusBadRequest, "event is required")
			return
		}
		if err := tenant.ValidateEventType(req.Event); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		outcome, err := dispatcher.Notify(r.Context(), tenantID, req.Event, req.Data)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusAccepted, dispatchResponse{
			TenantID: tenantID,
			Event:    req.Event,
			Outcome:  outcome.String(),
		})
	})
}

// postTest handles POST /v1/tenants/{tenant_id}/test
func postTest(dispatcher *webhook.Dispatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenant_id")

		req := eventRequest{Event: "webhook.test", Data: json.RawMessage(`{}`)}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		result, err := dispatcher.Test(r.Context(), tenantID, req.Event, req.Data)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, testResponse{
			Success:        result.Success,
			StatusCode:     result.StatusCode,
			ResponseTimeMs: result.ResponseTime.Milliseconds(),
			ErrorKind:      errorKindString(result),
			Error:          result.Error,
		})
	})
}

// postRetryFailed handles POST /v1/tenants/{tenant_id}/retry-failed
func postRetryFailed(q queue.Queue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q == nil {
			respondError(w, http.StatusServiceUnavailable, "no queue backend configured")
			return
		}

		tenantID := chi.URLParam(r, "tenant_id")

		count, err := q.RetryFailed(r.Context(), tenantID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, retryFailedResponse{
			TenantID: tenantID,
			Retried:  count,
		})
	})
}

// getTenantStats handles GET /v1/tenants/{tenant_id}/stats
func getTenantStats(store *tenant.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenant_id")

		cfg, err := store.Get(r.Context(), tenantID)
		if err != nil {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}

		resp := tenantStatsResponse{
			TenantID:              cfg.TenantID,
			Active:                cfg.Active,
			TotalSent:             cfg.Stats.TotalSent,
			SuccessCount:          cfg.Stats.SuccessCount,
			FailureCount:          cfg.Stats.FailureCount,
			AverageResponseTimeMs: cfg.Stats.AverageResponseTimeMs,
		}
		if !cfg.Stats.LastTriggeredAt.IsZero() {
			t := cfg.Stats.LastTriggeredAt
			resp.LastTriggeredAt = &t
		}

		respondJSON(w, http.StatusOK, resp)
	})
}

// getQueueStats handles GET /v1/queue/stats
func getQueueStats(q queue.Queue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q == nil {
			respondJSON(w, http.StatusOK, queue.Depth{})
			return
		}

		depth, err := q.Depth(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, depth)
	})
}

func errorKindString(result webhook.AttemptResult) string {
	if result.Success || result.ErrorKind == webhook.ErrNone {
		return ""
	}
	return result.ErrorKind.String()
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
