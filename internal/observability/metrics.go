package observability

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"assetgraph/internal/asset"
)

// Metrics holds the service instruments:
// - HTTP: latency, traffic and errors of the status API
// - Assets: eligibility evaluations, materialize and persist latency and failures
// - Runs: pipeline pass duration and failed assets
// - Notifications: webhook deliveries by outcome and queue depth
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	AssetEvaluations    metric.Int64Counter
	MaterializeDuration metric.Float64Histogram
	MaterializeFailures metric.Int64Counter
	PersistDuration     metric.Float64Histogram
	PersistFailures     metric.Int64Counter

	RunDuration  metric.Float64Histogram
	RunsTotal    metric.Int64Counter
	FailedAssets metric.Int64Counter

	NotificationsTotal   metric.Int64Counter
	NotificationDuration metric.Float64Histogram
	NotificationQueue    metric.Int64Gauge
}

// NewMetrics creates the instruments on a Prometheus exporter with its own
// registry and returns the scrape handler for it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("assetgraph")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AssetEvaluations, err = meter.Int64Counter(
		"asset_evaluations_total",
		metric.WithDescription("Eligibility evaluations by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MaterializeDuration, err = meter.Float64Histogram(
		"asset_materialize_duration_seconds",
		metric.WithDescription("Transformation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MaterializeFailures, err = meter.Int64Counter(
		"asset_materialize_failures_total",
		metric.WithDescription("Materializations that ended in MATERIALIZING_FAILED"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PersistDuration, err = meter.Float64Histogram(
		"asset_persist_duration_seconds",
		metric.WithDescription("Payload persist latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PersistFailures, err = meter.Int64Counter(
		"asset_persist_failures_total",
		metric.WithDescription("Persists that ended in PERSISTING_FAILED"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Duration of one pass over the registry"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.FailedAssets, err = meter.Int64Counter(
		"pipeline_failed_assets_total",
		metric.WithDescription("Assets that failed during a run"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationsTotal, err = meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("Webhook notifications by outcome (delivered, failed, dropped, requeued)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationDuration, err = meter.Float64Histogram(
		"notification_delivery_duration_seconds",
		metric.WithDescription("Webhook delivery latency including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotificationQueue, err = meter.Int64Gauge(
		"notification_queue_size",
		metric.WithDescription("Notifications waiting for delivery"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordHTTPRequest records HTTP request metrics. route is the matched pattern.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		routeAttr(route),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordEvaluation records one eligibility decision.
func (m *Metrics) RecordEvaluation(ctx context.Context, assetID string, eligible bool) {
	m.AssetEvaluations.Add(ctx, 1, metric.WithAttributes(assetAttr(assetID), eligibleAttr(eligible)))
}

// RecordMaterialization records a finished materialization attempt.
func (m *Metrics) RecordMaterialization(ctx context.Context, assetID string, status asset.Status, d time.Duration) {
	attrs := metric.WithAttributes(assetAttr(assetID), lifecycleAttr(status))
	m.MaterializeDuration.Record(ctx, d.Seconds(), attrs)
	if status != asset.StatusMaterialized {
		m.MaterializeFailures.Add(ctx, 1, metric.WithAttributes(assetAttr(assetID)))
	}
}

// RecordPersist records a finished persist attempt.
func (m *Metrics) RecordPersist(ctx context.Context, assetID string, status asset.Status, d time.Duration) {
	attrs := metric.WithAttributes(assetAttr(assetID), lifecycleAttr(status))
	m.PersistDuration.Record(ctx, d.Seconds(), attrs)
	if status != asset.StatusPersisted {
		m.PersistFailures.Add(ctx, 1, metric.WithAttributes(assetAttr(assetID)))
	}
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, d time.Duration, failed int) {
	m.RunDuration.Record(ctx, d.Seconds())
	m.RunsTotal.Add(ctx, 1)
	if failed > 0 {
		m.FailedAssets.Add(ctx, int64(failed))
	}
}

// RecordNotification counts one notification outcome. d is zero unless delivered.
func (m *Metrics) RecordNotification(ctx context.Context, outcome string, d time.Duration) {
	m.NotificationsTotal.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
	if d > 0 {
		m.NotificationDuration.Record(ctx, d.Seconds())
	}
}

// RecordNotificationQueue records the current notification backlog.
func (m *Metrics) RecordNotificationQueue(ctx context.Context, size int64) {
	m.NotificationQueue.Record(ctx, size)
}
