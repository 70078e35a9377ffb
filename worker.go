package conduit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/conduitrun/conduit/dispatcher"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/execctx"
	"github.com/conduitrun/conduit/mount"
	"github.com/conduitrun/conduit/registry"
)

// Worker is the application-facing facade: register functions, publish
// events, and obtain a Mount that dispatches them. Its options can be
// changed after construction via Configure, so a late call to WithStore
// (for example, once a database connection is established) takes effect
// on the next Mount call without requiring the caller to rebuild the
// Worker.
type Worker struct {
	opts atomic.Pointer[Options]

	mu        sync.Mutex
	functions []*registry.Function
}

// New constructs a Worker with DefaultOptions modified by opts.
func New(opts ...Option) *Worker {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	w := &Worker{}
	w.opts.Store(&o)
	return w
}

// GetOptions returns the Worker's current options.
func (w *Worker) GetOptions() Options {
	return *w.opts.Load()
}

// Configure applies opt to the Worker's current options, replacing them
// atomically.
func (w *Worker) Configure(opt Option) {
	cur := *w.opts.Load()
	opt(&cur)
	w.opts.Store(&cur)
}

// CreateFunction registers a function and returns it. filter may be nil to
// match every event.
func (w *Worker) CreateFunction(id string, filter event.Filter, handler registry.Handler) *registry.Function {
	f := registry.New(id, filter, handler)
	w.mu.Lock()
	w.functions = append(w.functions, f)
	w.mu.Unlock()
	return f
}

// Mount builds a mount.Mount serving every function registered with
// CreateFunction so far, using the Worker's current options.
func (w *Worker) Mount() (*mount.Mount, error) {
	o := w.GetOptions()
	if o.Store == nil {
		return nil, ErrNoStore
	}
	if o.ExecutionMode == mount.Isolated && o.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	w.mu.Lock()
	fns := make([]*registry.Function, len(w.functions))
	copy(fns, w.functions)
	w.mu.Unlock()

	m, err := mount.New(fns, mount.Options{
		Store:              o.Store,
		Dispatcher:         o.Dispatcher,
		Schema:             o.Schema,
		ExecutionMode:      o.ExecutionMode,
		Logger:             o.Logger,
		OnError:            o.OnError,
		Middleware:         o.Middleware,
		Recorder:           o.Recorder,
		ConcurrencyLimiter: o.ConcurrencyLimiter,
	})
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateFunctionID) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateFunctionID, err)
		}
		return nil, fmt.Errorf("conduit: %w", err)
	}
	return m, nil
}

// Publish sends evt as a fresh, top-level envelope through the configured
// Dispatcher, with no execution context — the first hop of a new
// execution.
func (w *Worker) Publish(ctx context.Context, evt event.Event, opts ...dispatcher.DispatchOption) error {
	o := w.GetOptions()
	if o.Dispatcher == nil {
		return ErrNoDispatcher
	}

	rawEvt, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("conduit: marshal event: %w", err)
	}
	payload, err := json.Marshal(execctx.Envelope{Event: rawEvt})
	if err != nil {
		return fmt.Errorf("conduit: marshal envelope: %w", err)
	}
	if err := o.Dispatcher.Dispatch(ctx, payload, opts...); err != nil {
		return &dispatcher.Error{Err: err}
	}
	o.Recorder.RecordPublish(ctx)
	return nil
}
