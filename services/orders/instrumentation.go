package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// PlacementMetrics agrega os contadores de desfecho das tentativas de
// colocação de pedido
type PlacementMetrics struct {
	accepted  metric.Int64Counter
	rejected  metric.Int64Counter
	failed    metric.Int64Counter
	integrity metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewPlacementMetrics cria os instrumentos de métrica do serviço
func NewPlacementMetrics(meter metric.Meter) (*PlacementMetrics, error) {
	accepted, err := meter.Int64Counter("placements_accepted_total",
		metric.WithDescription("Orders accepted with stock fully reserved"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("placements_rejected_total",
		metric.WithDescription("Orders rejected for shortage or invalid input"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("placements_failed_total",
		metric.WithDescription("Orders that failed on infrastructure errors"))
	if err != nil {
		return nil, err
	}
	integrity, err := meter.Int64Counter("integrity_violations_total",
		metric.WithDescription("Compensations that could not be completed"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("placement_duration_seconds",
		metric.WithDescription("End-to-end placement latency"))
	if err != nil {
		return nil, err
	}

	return &PlacementMetrics{
		accepted:  accepted,
		rejected:  rejected,
		failed:    failed,
		integrity: integrity,
		duration:  duration,
	}, nil
}

func (m *PlacementMetrics) Accepted(ctx context.Context)  { m.accepted.Add(ctx, 1) }
func (m *PlacementMetrics) Rejected(ctx context.Context)  { m.rejected.Add(ctx, 1) }
func (m *PlacementMetrics) Failed(ctx context.Context)    { m.failed.Add(ctx, 1) }
func (m *PlacementMetrics) Integrity(ctx context.Context) { m.integrity.Add(ctx, 1) }

func (m *PlacementMetrics) Observe(ctx context.Context, start time.Time) {
	m.duration.Record(ctx, time.Since(start).Seconds())
}

// startSpanFromPayload creates a child span linked to the propagated trace context
func startSpanFromPayload(ctx context.Context, operationName, traceID, spanID string) (context.Context, trace.Span) {
	if traceID != "" && spanID != "" {
		parsedTraceID, _ := trace.TraceIDFromHex(traceID)
		parsedSpanID, _ := trace.SpanIDFromHex(spanID)

		spanContext := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    parsedTraceID,
			SpanID:     parsedSpanID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})

		ctx = trace.ContextWithSpanContext(ctx, spanContext)
	}

	tracer := otel.Tracer("order-placement-service")
	return tracer.Start(ctx, operationName)
}

// CreateSagaSpan cria um span específico para operações SAGA do DTM
func CreateSagaSpan(ctx context.Context, operationName string, gid string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dtm-saga")
	ctx, span := tracer.Start(ctx, "dtm."+operationName)

	span.SetAttributes(
		attribute.String("dtm.gid", gid),
		attribute.String("dtm.operation", operationName),
		attribute.String("component", "dtm-coordinator"),
	)

	return ctx, span
}
