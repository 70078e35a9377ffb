package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
)

// Logging logs the start and outcome of every function invocation.
// Interrupts are logged at debug level as suspensions, not as errors —
// they are the protocol's normal control flow, not a handler failure.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, evt event.Event, next Next) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		switch {
		case engine.IsInterrupt(err):
			logger.DebugContext(ctx, "function suspended",
				slog.String("event_type", evt.Type),
				slog.Duration("elapsed", elapsed),
				slog.String("reason", err.Error()))
		case err != nil:
			logger.ErrorContext(ctx, "function failed",
				slog.String("event_type", evt.Type),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()))
		default:
			logger.InfoContext(ctx, "function completed",
				slog.String("event_type", evt.Type),
				slog.Duration("elapsed", elapsed))
		}
		return err
	}
}
