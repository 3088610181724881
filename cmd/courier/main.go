package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelsud/webhook-courier/config"
	courierchi "github.com/marcelsud/webhook-courier/internal/http/chi"
	"github.com/marcelsud/webhook-courier/metrics"
	"github.com/marcelsud/webhook-courier/tenant"
	"github.com/marcelsud/webhook-courier/webhook"
	"github.com/marcelsud/webhook-courier/webhook/queue"
	redisq "github.com/marcelsud/webhook-courier/webhook/redis"
)

const shutdownTimeout = 30 * time.Second

/* main wires the delivery core together. The queued/direct decision
 * is made exactly once here: with QUEUE_ENABLED the dispatcher hands
 * jobs to Redis and the worker pool owns retries; without it the
 * process degrades to synchronous one-shot delivery.
 */

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "webhook-courier").
		Logger()

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	store := tenant.NewStore()
	if err := tenant.LoadFile(cfg.TenantsFile, store); err != nil {
		log.Fatal().Err(err).Str("file", cfg.TenantsFile).Msg("failed to load tenant configuration")
	}
	log.Info().Int("tenants", len(store.List())).Msg("tenant configuration loaded")

	executor := webhook.NewExecutor(cfg.DeliveryTimeout(), log)
	stats := webhook.NewAggregator(store, webhook.SystemClock{}, log)

	var (
		q          queue.Queue
		redisQueue *redisq.Queue
		delivery   webhook.Delivery
		pool       *queue.Pool
	)

	if cfg.QueueEnabled {
		redisQueue, err = redisq.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisQueue.Close(ctx)

		q = redisQueue
		delivery = webhook.NewQueuedDelivery(redisQueue)

		pool = queue.NewPool(redisQueue, store, executor, stats, cfg.Workers, log)
		pool.Start(ctx)
		defer pool.Stop()
	} else {
		log.Warn().Msg("no queue backend configured, running in degraded synchronous mode")
		delivery = webhook.NewDirectDelivery(executor, stats, log)
	}

	dispatcher := webhook.NewDispatcher(store, delivery, executor, webhook.SystemClock{}, log)

	collector := metrics.NewQueueCollector(q, redisQueue, store)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up metrics exporter")
	}
	defer exporter.Shutdown(context.Background())

	r := courierchi.Handlers(dispatcher, q, store, exporter.ServeHTTP())

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)

	log.Info().Str("port", cfg.Port).Bool("queue_enabled", cfg.QueueEnabled).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}

	if err := <-errShutdown; err != nil {
		log.Error().Err(err).Msg("shutdown was not clean")
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	errShutdown <- server.Shutdown(ctxTimeout)
}
