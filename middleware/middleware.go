// Package middleware wraps a function invocation with cross-cutting
// concerns — logging, panic recovery, tracing, metrics — the way the
// teacher's own middleware chain wraps a job invocation. The unit of work
// here is one function's handling of one inbound event, not a queued job.
package middleware

import (
	"context"

	"github.com/conduitrun/conduit/event"
)

// Next invokes whatever the middleware chain wraps.
type Next func(ctx context.Context) error

// Middleware observes or modifies a single function invocation.
type Middleware func(ctx context.Context, evt event.Event, next Next) error

// Chain composes mws into a single Middleware, applied outermost-first.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, evt event.Event, next Next) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			nextH := h
			h = func(ctx context.Context) error { return mw(ctx, evt, nextH) }
		}
		return h(ctx)
	}
}
