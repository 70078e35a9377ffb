package conduit

import (
	"log/slog"

	"github.com/conduitrun/conduit/concurrency"
	"github.com/conduitrun/conduit/dispatcher"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/middleware"
	"github.com/conduitrun/conduit/mount"
	"github.com/conduitrun/conduit/observability"
	"github.com/conduitrun/conduit/store"
)

// Options configures a Worker. Fields left zero are filled in by
// DefaultOptions; a Worker's options can be changed after construction
// with Configure, which is why every field here is exported rather than
// hidden behind constructor-time-only options.
type Options struct {
	Store         store.Store
	Dispatcher    dispatcher.Dispatcher
	Schema        event.Schema
	ExecutionMode mount.ExecutionMode
	Logger        *slog.Logger
	OnError       func(error)
	Middleware    []middleware.Middleware
	Recorder      *observability.Recorder
	// ConcurrencyLimiter, if set, is attached to every Mount this Worker
	// builds, gating function invocations by id.
	ConcurrencyLimiter *concurrency.Limiter
}

// DefaultOptions returns the options a Worker starts with before any
// Option is applied.
func DefaultOptions() Options {
	return Options{
		Schema:        event.DefaultSchema{},
		ExecutionMode: mount.Isolated,
		Logger:        slog.Default(),
	}
}

// Option mutates a Worker's Options.
type Option func(*Options)

// WithStore configures the durability backend.
func WithStore(s store.Store) Option {
	return func(o *Options) { o.Store = s }
}

// WithDispatcher configures the transport used to deliver continuations.
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(o *Options) { o.Dispatcher = d }
}

// WithSchema overrides the default event schema.
func WithSchema(s event.Schema) Option {
	return func(o *Options) { o.Schema = s }
}

// WithExecutionMode selects Isolated or RunUntilError dispatch.
func WithExecutionMode(m mount.ExecutionMode) Option {
	return func(o *Options) { o.ExecutionMode = m }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithOnError registers a callback invoked with every non-Interrupt
// handler error.
func WithOnError(f func(error)) Option {
	return func(o *Options) { o.OnError = f }
}

// WithMiddleware appends middleware to the chain wrapping every function
// invocation, applied outermost-first in the order given.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(o *Options) { o.Middleware = append(o.Middleware, mw...) }
}

// WithRecorder attaches an observability.Recorder for step-commit and
// publish metrics.
func WithRecorder(r *observability.Recorder) Option {
	return func(o *Options) { o.Recorder = r }
}

// WithConcurrencyLimiter attaches a concurrency.Limiter bounding in-flight
// invocations (and, if configured, invocation rate) per function id,
// across every Mount built by this Worker.
func WithConcurrencyLimiter(l *concurrency.Limiter) Option {
	return func(o *Options) { o.ConcurrencyLimiter = l }
}
