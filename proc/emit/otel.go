package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span:
//
//   - span name: event.Msg ("step started", "step completed", ...)
//   - attributes: run_id, path, step and every Meta field
//   - status: error when the event carries an "error" meta key
//
// Spans are ended immediately: events mark points in time, not
// intervals. Latency lives in the Prometheus histograms instead.
//
// Usage:
//
//	tracer := otel.Tracer("labproc")
//	emitter := emit.NewOTelEmitter(tracer)
//	exec := proc.NewExecutor(p, proc.WithEmitter(emitter))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter over the given tracer, typically
// otel.Tracer("labproc").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", event.RunID),
		attribute.String("path", event.Path),
		attribute.String("step", event.Step),
	)
	for k, v := range event.Meta {
		span.SetAttributes(metaAttribute(k, v))
	}
	if errVal, failed := event.Meta["error"]; failed {
		span.SetStatus(codes.Error, fmt.Sprintf("%v", errVal))
	}
}

func metaAttribute(k string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case bool:
		return attribute.Bool(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	default:
		return attribute.String(k, fmt.Sprintf("%v", val))
	}
}
