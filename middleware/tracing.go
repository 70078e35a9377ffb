package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
)

// Tracing opens a span around each function invocation, named after the
// event type, and records the outcome — mirroring the teacher's own
// span-per-job-execution middleware.
func Tracing(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, evt event.Event, next Next) error {
		ctx, span := tracer.Start(ctx, "conduit.function.invoke",
			trace.WithAttributes(attribute.String("event.type", evt.Type)))
		defer span.End()

		err := next(ctx)
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case engine.IsInterrupt(err):
			span.AddEvent("suspended", trace.WithAttributes(attribute.String("reason", err.Error())))
			span.SetStatus(codes.Ok, "")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
