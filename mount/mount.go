// Package mount is the dispatch loop: the thing that turns one inbound
// envelope into zero or more function invocations, drives the engine's
// step protocol for each, and decides when an execution is finished and
// can be disposed.
package mount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conduitrun/conduit/concurrency"
	"github.com/conduitrun/conduit/dispatcher"
	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/execctx"
	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/middleware"
	"github.com/conduitrun/conduit/observability"
	"github.com/conduitrun/conduit/registry"
	"github.com/conduitrun/conduit/store"
)

// ExecutionMode selects how a mount reacts when a step needs to suspend
// and resume: by handing the continuation to an external dispatcher
// (Isolated) or by draining it from a local in-process queue before
// returning (RunUntilError).
type ExecutionMode int

const (
	// Isolated dispatches each continuation as a separate envelope through
	// Options.Dispatcher; every step boundary is a real hop through
	// transport. This is the default and the only mode safe for
	// executions that outlive a single process.
	Isolated ExecutionMode = iota
	// RunUntilError drains continuations from a local queue within a
	// single call to Execute, never touching Options.Dispatcher, until the
	// queue empties or a non-Interrupt error is returned. Intended for
	// tests and for short-lived executions that don't need to survive a
	// crash mid-flight.
	RunUntilError
)

// ErrNoStore is returned by New when Options.Store is nil.
var ErrNoStore = errors.New("mount: no store configured")

// ErrNoDispatcher is returned by New when Options.Dispatcher is nil and
// ExecutionMode is Isolated.
var ErrNoDispatcher = errors.New("mount: no dispatcher configured for isolated execution mode")

// Options configures a Mount.
type Options struct {
	Store         store.Store
	Dispatcher    dispatcher.Dispatcher
	Schema        event.Schema
	ExecutionMode ExecutionMode
	Logger        *slog.Logger
	OnError       func(error)
	Middleware    []middleware.Middleware
	Recorder      *observability.Recorder
	// ConcurrencyLimiter, if set, gates every function invocation through
	// Limiter.Acquire, keyed by the function's id, before its handler
	// runs. A nil limiter leaves every function unbounded.
	ConcurrencyLimiter *concurrency.Limiter
}

// Mount serves a fixed set of functions against a Store and Dispatcher.
type Mount struct {
	router *registry.Router
	opts   Options
}

// New builds a Mount serving functions. It fails if two functions share an
// id, or if the configured options are incomplete for the chosen
// execution mode.
func New(functions []*registry.Function, opts Options) (*Mount, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if opts.ExecutionMode == Isolated && opts.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}
	if opts.Schema == nil {
		opts.Schema = event.DefaultSchema{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := registry.NewRouter()
	for _, f := range functions {
		if err := router.Register(f); err != nil {
			return nil, err
		}
	}

	return &Mount{router: router, opts: opts}, nil
}

// Debug is a point-in-time introspection snapshot of a Mount's
// configuration.
type Debug struct {
	FunctionIDs   []string
	ExecutionMode ExecutionMode
}

// Debug returns a snapshot of m's configuration.
func (m *Mount) Debug() Debug {
	return Debug{FunctionIDs: m.router.IDs(), ExecutionMode: m.opts.ExecutionMode}
}

// Process unmarshals raw as an execctx.Envelope, validates its event
// against the configured Schema, and calls Execute.
func (m *Mount) Process(ctx context.Context, raw []byte) error {
	var env execctx.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &event.InvalidEventError{Reason: "malformed envelope", Err: err}
	}
	evt, err := m.opts.Schema.Parse(env.Event)
	if err != nil {
		return err
	}
	return m.Execute(ctx, evt, env.Context)
}

// roundInput is one item of the local drain queue: an execution context
// plus whether it is the freshly-synthesized top-level round (which defers
// to a kick rather than running handlers directly — see DESIGN.md for why
// the root frame is not itself a generic engine.Execute call).
type roundInput struct {
	ctx   execctx.ExecutionContext
	fresh bool
}

// Execute is the primary entry point. If execCtxArg is nil, a fresh
// execution is created and every matching function is kicked off (its
// handler is not invoked this round). Otherwise the inbound context
// targets an existing execution, and every routed function's handler runs
// directly, driving the engine's step protocol until it either suspends
// (a nested step began work or hit an in-progress marker) or resolves
// normally.
func (m *Mount) Execute(ctx context.Context, evt event.Event, execCtxArg *execctx.ExecutionContext) error {
	fresh := execCtxArg == nil

	var cur execctx.ExecutionContext
	if fresh {
		cur = execctx.ExecutionContext{ExecutionID: id.New(), Timestamp: time.Now().UnixMilli()}
		if err := m.opts.Store.BeginExecution(ctx, cur.ExecutionID); err != nil {
			return fmt.Errorf("mount: begin execution: %w", err)
		}
	} else {
		cur = *execCtxArg
		inProgress, err := m.opts.Store.IsExecutionInProgress(ctx, cur.ExecutionID)
		if err != nil {
			return fmt.Errorf("mount: check execution in progress: %w", err)
		}
		if !inProgress {
			m.opts.Logger.DebugContext(ctx, "dropping delivery for a disposed or unknown execution",
				slog.String("execution_id", cur.ExecutionID.String()))
			return nil
		}
	}

	matched := m.router.FilterForEvent(evt)
	if len(matched) == 0 {
		return nil
	}

	var bulk map[string][]byte
	if bs, ok := m.opts.Store.(store.BulkStore); ok {
		b, err := bs.GetExecutionTaskResults(ctx, cur.ExecutionID)
		if err != nil {
			return fmt.Errorf("mount: bulk prefetch: %w", err)
		}
		bulk = b
	}

	queue := []roundInput{{ctx: cur, fresh: fresh}}
	var aggErr error
	lastRoundClean := false

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		targets := m.route(matched, item.ctx, item.fresh)
		if len(targets) == 0 {
			continue
		}

		var mu sync.Mutex
		anyEnqueued := false
		allCompleted := true
		var roundErr error

		enqueue := func(ctx context.Context, next execctx.ExecutionContext) error {
			mu.Lock()
			anyEnqueued = true
			mu.Unlock()

			if m.opts.ExecutionMode == RunUntilError {
				mu.Lock()
				queue = append(queue, roundInput{ctx: next})
				mu.Unlock()
				return nil
			}
			m.opts.Recorder.RecordPublish(ctx)
			return m.publish(ctx, evt, next)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, f := range targets {
			f := f
			g.Go(func() error {
				if m.opts.ConcurrencyLimiter != nil {
					release, err := m.opts.ConcurrencyLimiter.Acquire(gctx, f.ID)
					if err != nil {
						mu.Lock()
						allCompleted = false
						roundErr = errors.Join(roundErr, fmt.Errorf("mount: acquire concurrency slot for %q: %w", f.ID, err))
						mu.Unlock()
						return nil
					}
					defer release()
				}
				completed, err := m.invoke(gctx, f, evt, item.ctx, item.fresh, enqueue, bulk)
				mu.Lock()
				if !completed {
					allCompleted = false
				}
				if err != nil {
					roundErr = errors.Join(roundErr, err)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if roundErr != nil {
			aggErr = errors.Join(aggErr, roundErr)
			if m.opts.ExecutionMode == RunUntilError {
				return aggErr
			}
		}
		lastRoundClean = anyEnqueued == false && allCompleted && roundErr == nil
	}

	if lastRoundClean {
		if err := m.opts.Store.DisposeExecution(ctx, cur.ExecutionID); err != nil {
			return fmt.Errorf("mount: dispose execution: %w", err)
		}
	}
	return aggErr
}

// route selects which registered functions should run for this round: all
// matched functions for a fresh kick or a bare top-level re-entry (there is
// no taskId to disambiguate by), or the single function whose id is the
// leading segment of the inbound taskId otherwise.
func (m *Mount) route(matched []*registry.Function, cur execctx.ExecutionContext, fresh bool) []*registry.Function {
	if fresh || cur.TaskID == nil {
		return matched
	}
	root := execctx.Root(*cur.TaskID)
	for _, f := range matched {
		if f.ID == root {
			return []*registry.Function{f}
		}
	}
	return nil
}

// invoke runs one function for one round. For a fresh execution this is a
// bootstrapping kick: claim the function's root path and enqueue a
// continuation naming it, without ever calling the handler. Otherwise the
// handler runs directly, and its returned error is classified as a
// suspension (engine.Interrupt), a genuine failure, or a clean completion.
func (m *Mount) invoke(ctx context.Context, f *registry.Function, evt event.Event, cur execctx.ExecutionContext, fresh bool, enqueue engine.ContinueFunc, bulk map[string][]byte) (completed bool, err error) {
	if fresh {
		if err := m.opts.Store.BeginExecutionTask(ctx, cur.ExecutionID, f.ID); err != nil {
			return false, fmt.Errorf("mount: begin %q: %w", f.ID, err)
		}
		taskID := f.ID
		next := execctx.ExecutionContext{ExecutionID: cur.ExecutionID, Timestamp: cur.Timestamp, TaskID: &taskID}
		if err := enqueue(ctx, next); err != nil {
			return false, fmt.Errorf("mount: enqueue kick for %q: %w", f.ID, err)
		}
		return false, nil
	}

	ec := &engine.ExecCtx{
		Ctx:       ctx,
		ExecID:    cur.ExecutionID,
		Timestamp: cur.Timestamp,
		TaskID:    cur.TaskID,
		Path:      f.ID,
		Store:     m.opts.Store,
		Cache:     bulk,
		Continue: enqueue,
	}

	chain := middleware.Chain(m.opts.Middleware...)
	handlerErr := chain(ctx, evt, func(ctx context.Context) error { return f.Handler(ctx, evt, ec) })

	var interrupt *engine.Interrupt
	switch {
	case errors.As(handlerErr, &interrupt):
		if interrupt.Reason == engine.ReasonStepCommitted {
			m.opts.Recorder.RecordStepCommitted(ctx, interrupt.Path)
		}
		return false, nil
	case handlerErr != nil:
		if m.opts.OnError != nil {
			m.opts.OnError(handlerErr)
		}
		return false, handlerErr
	default:
		return true, nil
	}
}

// publish marshals evt and next as an envelope and hands it to the
// configured Dispatcher.
func (m *Mount) publish(ctx context.Context, evt event.Event, next execctx.ExecutionContext) error {
	rawEvt, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("mount: marshal event: %w", err)
	}
	env := execctx.Envelope{Event: rawEvt, Context: &next}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("mount: marshal envelope: %w", err)
	}
	if err := m.opts.Dispatcher.Dispatch(ctx, payload); err != nil {
		return &dispatcher.Error{Err: err}
	}
	return nil
}
