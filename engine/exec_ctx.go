package engine

import (
	"context"

	"github.com/conduitrun/conduit/execctx"
	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

// ContinueFunc enqueues the next continuation for an execution — either by
// publishing it externally (isolated mode) or by appending it to an
// in-process queue drained before the current call returns
// (run-until-error mode). It is the one thing engine needs from mount and
// nothing else, keeping this package free of any dependency on transport.
type ContinueFunc func(ctx context.Context, next execctx.ExecutionContext) error

// ExecCtx is the ambient, explicitly-threaded scope a handler carries
// through every nested call to Execute or Step. Go has no continuation-
// local storage, so — per the specification's own accepted fallback — the
// current path lives here rather than in an implicit thread-local: each
// handler receives one and must pass it (or a value derived from it, via
// Execute's own bookkeeping) down to every nested call it makes.
type ExecCtx struct {
	Ctx       context.Context
	ExecID    id.ID
	Timestamp int64
	TaskID    *string
	Path      string
	Store     store.Store
	Cache     map[string][]byte // optional bulk prefetch; nil if unavailable
	Continue  ContinueFunc
}

func (ec *ExecCtx) child(path string) *ExecCtx {
	c := *ec
	c.Path = path
	return &c
}

// Context returns the user context.Context threaded through this frame,
// satisfying handlers that want ctx.Context()-style access.
func (ec *ExecCtx) Context() context.Context { return ec.Ctx }
