package chi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelsud/webhook-courier/internal/http/chi"
	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook"
	"github.com/marcelsud/webhook-courier/webhook/queue"
)

/* stubQueue satisfies queue.Queue in memory so router tests never need
 * a Redis backend
 */
type stubQueue struct {
	enqueued   []webhook.DeliveryJob
	depth      queue.Depth
	retryCount int
}

func (s *stubQueue) Enqueue(_ context.Context, job webhook.DeliveryJob) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func (s *stubQueue) EnqueueAfter(_ context.Context, job webhook.DeliveryJob, _ time.Duration) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

func (s *stubQueue) Dequeue(_ context.Context, _ string) (*webhook.DeliveryJob, error) {
	return nil, nil
}

func (s *stubQueue) Ack(_ context.Context, _ webhook.DeliveryJob) error  { return nil }
func (s *stubQueue) Fail(_ context.Context, _ webhook.DeliveryJob) error { return nil }

func (s *stubQueue) Depth(_ context.Context) (queue.Depth, error) {
	return s.depth, nil
}

func (s *stubQueue) RetryFailed(_ context.Context, _ string) (int, error) {
	return s.retryCount, nil
}

func (s *stubQueue) Close(_ context.Context) error { return nil }

func storeWithTenant(t *testing.T, endpointURL string) *tenant.Store {
	t.Helper()
	store := tenant.NewStore()
	require.NoError(t, store.Put(tenant.WebhookConfig{
		TenantID:    "acme",
		EndpointURL: endpointURL,
		Secret:      "0123456789abcdef",
		Active:      true,
		EnabledEvents: map[string]bool{
			"card.extracted": true,
		},
		RetryPolicy: tenant.RetryPolicy{
			MaxRetries:        2,
			InitialDelay:      100 * time.Millisecond,
			BackoffMultiplier: 2,
		},
	}))
	return store
}

func newRouter(store *tenant.Store, q queue.Queue) http.Handler {
	executor := webhook.NewExecutor(5*time.Second, zerolog.Nop())

	var delivery webhook.Delivery
	if q != nil {
		delivery = webhook.NewQueuedDelivery(q)
	} else {
		stats := webhook.NewAggregator(store, nil, zerolog.Nop())
		delivery = webhook.NewDirectDelivery(executor, stats, zerolog.Nop())
	}

	dispatcher := webhook.NewDispatcher(store, delivery, executor, nil, zerolog.Nop())
	return chi.Handlers(dispatcher, q, store, nil)
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(tenant.NewStore(), &stubQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestPostEvent(t *testing.T) {
	t.Run("accepted - job queued", func(t *testing.T) {
		store := storeWithTenant(t, "https://acme.test/hook")
		q := &stubQueue{}
		router := newRouter(store, q)

		body := `{"event":"card.extracted","data":{"cards":3}}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/events", strings.NewReader(body)))

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp struct {
			TenantID string `json:"tenant_id"`
			Event    string `json:"event"`
			Outcome  string `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "acme", resp.TenantID)
		assert.Equal(t, "card.extracted", resp.Event)
		assert.Equal(t, "queued", resp.Outcome)
		assert.Len(t, q.enqueued, 1)
	})

	t.Run("accepted - skipped for unknown tenant", func(t *testing.T) {
		router := newRouter(tenant.NewStore(), &stubQueue{})

		body := `{"event":"card.extracted","data":{}}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/ghost/events", strings.NewReader(body)))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"outcome":"skipped"`)
	})

	t.Run("accepted - skipped for disabled event", func(t *testing.T) {
		store := storeWithTenant(t, "https://acme.test/hook")
		q := &stubQueue{}
		router := newRouter(store, q)

		body := `{"event":"user.added","data":{}}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/events", strings.NewReader(body)))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"outcome":"skipped"`)
		assert.Empty(t, q.enqueued)
	})

	t.Run("error - missing event name", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/events", strings.NewReader(`{"data":{}}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error - malformed event name", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/events", strings.NewReader(`{"event":"not a name"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/events", strings.NewReader(`{`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPostTest(t *testing.T) {
	t.Run("success - synchronous attempt result returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "webhook.test", r.Header.Get("X-Event-Type"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		store := storeWithTenant(t, srv.URL)
		q := &stubQueue{}
		router := newRouter(store, q)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/test", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success    bool `json:"success"`
			StatusCode int  `json:"status_code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// Test sends never enter the queue
		assert.Empty(t, q.enqueued)
	})

	t.Run("failure reported, not retried", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		store := storeWithTenant(t, srv.URL)
		router := newRouter(store, &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/test", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
		assert.Contains(t, rec.Body.String(), `"error_kind":"http_status"`)

		// Stats counters never move for test sends
		cfg, err := store.Get(context.Background(), "acme")
		require.NoError(t, err)
		assert.Zero(t, cfg.Stats.TotalSent)
	})

	t.Run("error - unknown tenant", func(t *testing.T) {
		router := newRouter(tenant.NewStore(), &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/ghost/test", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPostRetryFailed(t *testing.T) {
	t.Run("success - reports re-enqueued count", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), &stubQueue{retryCount: 2})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/retry-failed", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"tenant_id":"acme","retried":2}`, rec.Body.String())
	})

	t.Run("error - unavailable without a queue backend", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tenants/acme/retry-failed", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetTenantStats(t *testing.T) {
	t.Run("success - counters exposed, secret withheld", func(t *testing.T) {
		store := storeWithTenant(t, "https://acme.test/hook")
		at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, store.ApplyStats(context.Background(), "acme", tenant.StatsDelta{Success: true, ResponseTime: 120 * time.Millisecond, At: at}))

		router := newRouter(store, &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants/acme/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			TenantID              string  `json:"tenant_id"`
			TotalSent             int64   `json:"total_sent"`
			SuccessCount          int64   `json:"success_count"`
			AverageResponseTimeMs float64 `json:"average_response_time_ms"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "acme", resp.TenantID)
		assert.Equal(t, int64(1), resp.TotalSent)
		assert.Equal(t, int64(1), resp.SuccessCount)
		assert.InDelta(t, 120, resp.AverageResponseTimeMs, 0.01)

		assert.NotContains(t, rec.Body.String(), "0123456789abcdef")
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("error - unknown tenant", func(t *testing.T) {
		router := newRouter(tenant.NewStore(), &stubQueue{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants/ghost/stats", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetQueueStats(t *testing.T) {
	t.Run("success - depth from the backend", func(t *testing.T) {
		q := &stubQueue{depth: queue.Depth{Pending: 3, Scheduled: 2, InFlight: 1}}
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), q)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"pending":3,"scheduled":2,"in_flight":1}`, rec.Body.String())
	})

	t.Run("zeros without a queue backend", func(t *testing.T) {
		router := newRouter(storeWithTenant(t, "https://acme.test/hook"), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queue/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"pending":0,"scheduled":0,"in_flight":0}`, rec.Body.String())
	})
}
