package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
)

// Metrics records an invocation counter and a latency histogram per event
// type and outcome, grounded on the teacher's own otel Float64Histogram +
// Int64Counter middleware pair.
func Metrics(meter metric.Meter) (Middleware, error) {
	invocations, err := meter.Int64Counter("conduit.function.invocations",
		metric.WithDescription("Number of function invocations by outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("conduit.function.latency",
		metric.WithDescription("Function invocation latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, evt event.Event, next Next) error {
		start := time.Now()
		err := next(ctx)
		elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)

		outcome := "completed"
		switch {
		case engine.IsInterrupt(err):
			outcome = "suspended"
		case err != nil:
			outcome = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("event.type", evt.Type),
			attribute.String("outcome", outcome),
		)
		invocations.Add(ctx, 1, attrs)
		latency.Record(ctx, elapsedMS, attrs)
		return err
	}, nil
}
