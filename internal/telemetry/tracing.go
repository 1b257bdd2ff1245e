// Package telemetry wraps asynchronous saga runs in OpenTelemetry spans.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sagastore/internal/saga"
	"github.com/roach88/sagastore/internal/state"
)

// tracerName is the instrumentation scope name for saga spans.
const tracerName = "github.com/roach88/sagastore"

// SpanName is the name of the span opened for every saga run.
const SpanName = "saga.run"

// Tracing returns an interceptor using the global TracerProvider. With no
// provider configured the noop tracer makes it a pass-through.
func Tracing() saga.Interceptor {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns a tracing interceptor using tracer.
//
// Span attributes: saga.name, saga.action, saga.dispatch_id,
// saga.dispatch_seq. A failed run records the error and sets codes.Error;
// a recovered panic additionally sets saga.panic=true.
func TracingWithTracer(tracer trace.Tracer) saga.Interceptor {
	return func(ctx context.Context, run saga.Run, next func(context.Context) error) error {
		ctx, span := tracer.Start(ctx, SpanName,
			trace.WithAttributes(
				attribute.String("saga.name", run.Saga),
				attribute.String("saga.action", state.Describe(run.Dispatch.Action)),
				attribute.String("saga.dispatch_id", run.Dispatch.ID),
				attribute.Int64("saga.dispatch_seq", run.Dispatch.Seq),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			if saga.IsPanic(err) {
				span.SetAttributes(attribute.Bool("saga.panic", true))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
