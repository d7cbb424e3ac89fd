package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/rahuul2001/recreated-video-sentiment-analysis-saas"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Job lifecycle
	JobsCreatedTotal       metric.Int64Counter
	JobsCreateFailedTotal  metric.Int64Counter
	JobUpdatesTotal        metric.Int64Counter
	JobTransitionsRejected metric.Int64Counter

	// Worker notifications and webhooks
	WorkerNotifyTotal    metric.Int64Counter
	WorkerNotifyDuration metric.Float64Histogram
	WebhookDeliveryTotal metric.Int64Counter

	// Synchronous API
	SyncWaitDuration metric.Float64Histogram
	SyncWaitTotal    metric.Int64Counter

	// API keys
	APIKeyValidationsTotal metric.Int64Counter

	// Media
	MediaBytesIngested metric.Int64Counter
	MediaAssetsCreated metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.JobsCreatedTotal, _ = meter.Int64Counter(
		"videoinsight.jobs.created.total",
		metric.WithDescription("Total number of analysis jobs created"),
		metric.WithUnit("{job}"),
	)

	m.JobsCreateFailedTotal, _ = meter.Int64Counter(
		"videoinsight.jobs.create_failed.total",
		metric.WithDescription("Jobs failed at creation time, by error code"),
		metric.WithUnit("{job}"),
	)

	m.JobUpdatesTotal, _ = meter.Int64Counter(
		"videoinsight.jobs.updates.total",
		metric.WithDescription("Job updates applied from worker callbacks, by status"),
		metric.WithUnit("{update}"),
	)

	m.JobTransitionsRejected, _ = meter.Int64Counter(
		"videoinsight.jobs.transitions.rejected.total",
		metric.WithDescription("Job updates rejected because the status transition is not allowed"),
		metric.WithUnit("{update}"),
	)

	m.WorkerNotifyTotal, _ = meter.Int64Counter(
		"videoinsight.worker.notify.total",
		metric.WithDescription("Worker notifications, by outcome"),
		metric.WithUnit("{request}"),
	)

	m.WorkerNotifyDuration, _ = meter.Float64Histogram(
		"videoinsight.worker.notify.duration",
		metric.WithDescription("Duration of worker notification requests"),
		metric.WithUnit("ms"),
	)

	m.WebhookDeliveryTotal, _ = meter.Int64Counter(
		"videoinsight.webhook.delivery.total",
		metric.WithDescription("Webhook deliveries for terminal jobs, by outcome"),
		metric.WithUnit("{request}"),
	)

	m.SyncWaitDuration, _ = meter.Float64Histogram(
		"videoinsight.sync.wait.duration",
		metric.WithDescription("Time spent waiting for a job in the synchronous API"),
		metric.WithUnit("s"),
	)

	m.SyncWaitTotal, _ = meter.Int64Counter(
		"videoinsight.sync.wait.total",
		metric.WithDescription("Synchronous waits, by outcome"),
		metric.WithUnit("{wait}"),
	)

	m.APIKeyValidationsTotal, _ = meter.Int64Counter(
		"videoinsight.apikeys.validations.total",
		metric.WithDescription("API key validations, by outcome"),
		metric.WithUnit("{request}"),
	)

	m.MediaBytesIngested, _ = meter.Int64Counter(
		"videoinsight.media.ingested.bytes",
		metric.WithDescription("Bytes uploaded to object storage by server-driven ingest"),
		metric.WithUnit("By"),
	)

	m.MediaAssetsCreated, _ = meter.Int64Counter(
		"videoinsight.media.assets.created.total",
		metric.WithDescription("Media assets recorded, by source"),
		metric.WithUnit("{asset}"),
	)

	return m
}

// Outcome attaches an outcome label to a measurement.
func Outcome(outcome string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("outcome", outcome))
}

// Status attaches a job status label to a measurement.
func Status(status string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("status", status))
}

// RecordDuration records the elapsed milliseconds since start on h.
func RecordDuration(ctx context.Context, h metric.Float64Histogram, start time.Time, opts ...metric.RecordOption) {
	h.Record(ctx, float64(time.Since(start).Milliseconds()), opts...)
}
