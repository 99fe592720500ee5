package otel

import (
	"context"
	"fmt"

	config "github.com/agentwire/a2a/server/config"
	otel "go.opentelemetry.io/otel"
	attribute "go.opentelemetry.io/otel/attribute"
	prometheus "go.opentelemetry.io/otel/exporters/prometheus"
	metric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	resource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	zap "go.uber.org/zap"
)

// OpenTelemetry defines the operations for telemetry
type OpenTelemetry interface {
	// Request level metrics
	RecordRequestCount(ctx context.Context, requestType string)
	RecordResponseStatus(ctx context.Context, requestType, requestPath string, statusCode int)
	RecordRequestDuration(ctx context.Context, requestType, requestPath string, durationMs float64)

	// Task lifecycle metrics
	RecordTaskSubmitted(ctx context.Context, skillID string)
	RecordTaskCompleted(ctx context.Context, skillID string, success bool)

	// Shutdown the telemetry system
	ShutDown(ctx context.Context) error
}

type OpenTelemetryImpl struct {
	logger        *zap.Logger
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	// Metrics
	requestCounter           metric.Int64Counter
	responseStatusCounter    metric.Int64Counter
	requestDurationHistogram metric.Float64Histogram
	taskSubmittedCounter     metric.Int64Counter
	taskCompletedCounter     metric.Int64Counter
}

var _ OpenTelemetry = (*OpenTelemetryImpl)(nil)

// NewOpenTelemetry creates a new OpenTelemetry implementation backed by a
// prometheus exporter
func NewOpenTelemetry(cfg *config.Config, logger *zap.Logger) (OpenTelemetry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	o := &OpenTelemetryImpl{
		logger: logger,
	}

	if err := o.initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}

	return o, nil
}

func (o *OpenTelemetryImpl) initialize(cfg *config.Config) error {
	o.logger.Info("initializing opentelemetry",
		zap.String("agent_name", cfg.AgentName),
		zap.String("version", cfg.AgentVersion))

	exporter, err := prometheus.New()
	if err != nil {
		o.logger.Error("failed to create prometheus exporter", zap.Error(err))
		return err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AgentName),
		semconv.ServiceVersion(cfg.AgentVersion),
	)

	histogramBoundaries := []float64{1, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

	latencyView := sdkmetric.NewView(
		sdkmetric.Instrument{
			Kind: sdkmetric.InstrumentKindHistogram,
		},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: histogramBoundaries,
			},
		},
	)

	o.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(latencyView),
	)
	otel.SetMeterProvider(o.meterProvider)

	o.meter = o.meterProvider.Meter(cfg.AgentName)

	if err := o.initializeMetrics(); err != nil {
		o.logger.Error("failed to initialize metrics", zap.Error(err))
		return err
	}

	o.logger.Info("opentelemetry initialized successfully")
	return nil
}

// initializeMetrics initializes all the OpenTelemetry metrics
func (o *OpenTelemetryImpl) initializeMetrics() error {
	var err error

	o.requestCounter, err = o.meter.Int64Counter(
		"a2a.requests.total",
		metric.WithDescription("Total number of A2A protocol requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	o.responseStatusCounter, err = o.meter.Int64Counter(
		"a2a.responses.total",
		metric.WithDescription("Total number of A2A responses by status code"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return err
	}

	o.requestDurationHistogram, err = o.meter.Float64Histogram(
		"a2a.request.duration",
		metric.WithDescription("Duration of A2A request handling"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.taskSubmittedCounter, err = o.meter.Int64Counter(
		"a2a.tasks.submitted.total",
		metric.WithDescription("Total number of tasks submitted for asynchronous execution"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	o.taskCompletedCounter, err = o.meter.Int64Counter(
		"a2a.tasks.completed.total",
		metric.WithDescription("Total number of tasks that settled, by outcome"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	return nil
}

func (o *OpenTelemetryImpl) RecordRequestCount(ctx context.Context, requestType string) {
	o.requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_type", requestType),
	))
}

func (o *OpenTelemetryImpl) RecordResponseStatus(ctx context.Context, requestType, requestPath string, statusCode int) {
	o.responseStatusCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request_method", requestType),
		attribute.String("request_path", requestPath),
		attribute.Int("status_code", statusCode),
	))
}

func (o *OpenTelemetryImpl) RecordRequestDuration(ctx context.Context, requestType, requestPath string, durationMs float64) {
	o.requestDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("request_method", requestType),
		attribute.String("request_path", requestPath),
	))
}

func (o *OpenTelemetryImpl) RecordTaskSubmitted(ctx context.Context, skillID string) {
	o.taskSubmittedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("skill_id", skillID),
	))
}

func (o *OpenTelemetryImpl) RecordTaskCompleted(ctx context.Context, skillID string, success bool) {
	o.taskCompletedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("skill_id", skillID),
		attribute.Bool("success", success),
	))
}

func (o *OpenTelemetryImpl) ShutDown(ctx context.Context) error {
	return o.meterProvider.Shutdown(ctx)
}
