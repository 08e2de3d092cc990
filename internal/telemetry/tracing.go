package telemetry

import (
	"context"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	// Trace operation names
	TraceSamplingTick   = "phpfpm_queue.sampling.tick"
	TraceMetricEmission = "phpfpm_queue.metric.emission"

	// Attribute keys
	AttrQueueDepth           = "phpfpm_queue.aggregate.queue"
	AttrContainersDiscovered = "phpfpm_queue.containers.discovered"
	AttrContainersMatched    = "phpfpm_queue.containers.matched"
	AttrContainersSampled    = "phpfpm_queue.containers.sampled"
	AttrContainersFailed     = "phpfpm_queue.containers.failed"
	AttrMetricNamespace      = "phpfpm_queue.metric.namespace"
	AttrMetricName           = "phpfpm_queue.metric.name"
	AttrErrorType            = "phpfpm_queue.error.type"
)

// TraceHelper provides helper methods for creating traces
type TraceHelper struct {
	tracer oteltrace.Tracer
}

// NewTraceHelper creates a new trace helper
func NewTraceHelper(serviceName string) *TraceHelper {
	return &TraceHelper{
		tracer: otel.Tracer(serviceName),
	}
}

// StartSpan starts a new tracing span with common attributes
func (th *TraceHelper) StartSpan(ctx context.Context, operationName string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return th.tracer.Start(ctx, operationName, oteltrace.WithAttributes(attrs...))
}

// RecordError records an error on the span
func (th *TraceHelper) RecordError(span oteltrace.Span, err error, description string) {
	if err != nil {
		span.SetStatus(codes.Error, description)
		span.RecordError(err, oteltrace.WithAttributes(
			attribute.String(AttrErrorType, description),
		))
	}
}

// SetSpanSuccess marks span as successful
func (th *TraceHelper) SetSpanSuccess(span oteltrace.Span) {
	span.SetStatus(codes.Ok, "Success")
}

// TraceSamplingTickFunc traces one full sampling tick. The aggregate's
// counters are attached even when the measured queue is zero, so
// all-quiet ticks remain visible in traces despite not being emitted.
func (th *TraceHelper) TraceSamplingTickFunc(ctx context.Context, fn func(context.Context) (types.AggregateSample, error)) (types.AggregateSample, error) {
	ctx, span := th.StartSpan(ctx, TraceSamplingTick)
	defer span.End()

	start := time.Now()
	sample, err := fn(ctx)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		th.RecordError(span, err, "sampling tick failed")
		return sample, err
	}

	span.SetAttributes(
		attribute.Int64(AttrQueueDepth, sample.Queue),
		attribute.Int(AttrContainersDiscovered, sample.Discovered),
		attribute.Int(AttrContainersMatched, sample.Matched),
		attribute.Int(AttrContainersSampled, sample.Sampled),
		attribute.Int(AttrContainersFailed, sample.Failed),
	)

	th.SetSpanSuccess(span)
	return sample, nil
}

// TraceMetricEmissionFunc traces one metric submission to the sink.
func (th *TraceHelper) TraceMetricEmissionFunc(ctx context.Context, namespace, metricName string, value int64, fn func(context.Context) error) error {
	ctx, span := th.StartSpan(ctx, TraceMetricEmission,
		attribute.String(AttrMetricNamespace, namespace),
		attribute.String(AttrMetricName, metricName),
		attribute.Int64(AttrQueueDepth, value),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		th.RecordError(span, err, "metric emission failed")
		return err
	}

	th.SetSpanSuccess(span)
	return nil
}

// GetTraceHelper returns a trace helper instance from telemetry service
func (s *Service) GetTraceHelper() *TraceHelper {
	if !s.config.Enabled {
		return &TraceHelper{tracer: otel.Tracer("noop")}
	}
	return &TraceHelper{tracer: s.tracer}
}
