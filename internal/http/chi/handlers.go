package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook"
	"github.com/marcelsud/webhook-courier/webhook/queue"
)

// Handlers sets up the courier API routes. The queue is nil when the
// process runs in direct (no-queue) mode; queue-dependent endpoints
// then report 503.
func Handlers(dispatcher *webhook.Dispatcher, q queue.Queue, store *tenant.Store, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-courier", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	// Direct mode and test calls block for up to one delivery attempt
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Host-system trigger: notify a tenant that an event occurred
		r.Post("/tenants/{tenant_id}/events", postEvent(dispatcher).ServeHTTP)

		// One synchronous attempt, bypassing queue and stats
		r.Post("/tenants/{tenant_id}/test", postTest(dispatcher).ServeHTTP)

		// Re-enqueue the tenant's terminally failed jobs
		r.Post("/tenants/{tenant_id}/retry-failed", postRetryFailed(q).ServeHTTP)

		// Rolling delivery counters for the admin UI
		r.Get("/tenants/{tenant_id}/stats", getTenantStats(store).ServeHTTP)

		// Operational queue depth
		r.Get("/queue/stats", getQueueStats(q).ServeHTTP)
	})

	return r
}
