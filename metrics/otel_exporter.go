package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	queueDepthGauge    metric.Int64ObservableGauge
	activeWorkersGauge metric.Int64ObservableGauge
	deliveriesGauge    metric.Int64ObservableGauge
	responseTimeGauge  metric.Float64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-courier",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Queue depth gauge (per state: pending, scheduled, in_flight)
	oe.queueDepthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.queue.depth",
		metric.WithDescription("Number of delivery jobs in the queue per state"),
		metric.WithUnit("{jobs}"),
		metric.WithInt64Callback(oe.observeQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	// Active workers gauge (per status)
	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.workers.active",
		metric.WithDescription("Number of pool workers with a live heartbeat"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	// Per-tenant terminal delivery outcomes
	oe.deliveriesGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.total",
		metric.WithDescription("Terminal delivery outcomes per tenant"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeDeliveries),
	)
	if err != nil {
		return fmt.Errorf("creating deliveries gauge: %w", err)
	}

	// Per-tenant average response time over successful attempts
	oe.responseTimeGauge, err = oe.meter.Float64ObservableGauge(
		"webhook.response_time.avg",
		metric.WithDescription("Running mean response time of successful deliveries per tenant"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(oe.observeResponseTimes),
	)
	if err != nil {
		return fmt.Errorf("creating response time gauge: %w", err)
	}

	return nil
}

// observeQueueDepth is a callback that reports queue depth per state
func (oe *OTelExporter) observeQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	depth, err := oe.collector.GetQueueDepth(ctx)
	if err != nil {
		return err
	}

	observer.Observe(depth.Pending, metric.WithAttributes(
		attribute.String("queue.state", "pending"),
	))
	observer.Observe(depth.Scheduled, metric.WithAttributes(
		attribute.String("queue.state", "scheduled"),
	))
	observer.Observe(depth.InFlight, metric.WithAttributes(
		attribute.String("queue.state", "in_flight"),
	))

	return nil
}

// observeActiveWorkers is a callback that reports worker counts by status
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int64)
	for _, w := range workers {
		byStatus[w.Status]++
	}

	for status, count := range byStatus {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("worker.status", status),
		))
	}

	return nil
}

// observeDeliveries is a callback that reports per-tenant outcome counters
func (oe *OTelExporter) observeDeliveries(ctx context.Context, observer metric.Int64Observer) error {
	tenants, err := oe.collector.GetTenantStats(ctx)
	if err != nil {
		return err
	}

	for _, t := range tenants {
		observer.Observe(t.SuccessCount, metric.WithAttributes(
			attribute.String("tenant.id", t.TenantID),
			attribute.String("outcome", "success"),
		))
		observer.Observe(t.FailureCount, metric.WithAttributes(
			attribute.String("tenant.id", t.TenantID),
			attribute.String("outcome", "failure"),
		))
	}

	return nil
}

// observeResponseTimes is a callback that reports per-tenant mean latency
func (oe *OTelExporter) observeResponseTimes(ctx context.Context, observer metric.Float64Observer) error {
	tenants, err := oe.collector.GetTenantStats(ctx)
	if err != nil {
		return err
	}

	for _, t := range tenants {
		if t.SuccessCount == 0 {
			continue
		}
		observer.Observe(t.AverageResponseTimeMs, metric.WithAttributes(
			attribute.String("tenant.id", t.TenantID),
		))
	}

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
