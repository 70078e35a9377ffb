// Package registry holds the set of functions a mount serves: each one an
// id, a filter over inbound events, and the handler that advances it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
)

// ErrDuplicateFunctionID is returned by Router.Register when a function id
// has already been registered on the same router.
var ErrDuplicateFunctionID = errors.New("registry: duplicate function id")

// Handler is the code a function runs for each matching event. ec threads
// the ambient path scope every nested engine.Execute/Step call needs.
type Handler func(ctx context.Context, evt event.Event, ec *engine.ExecCtx) error

// Function is one registered unit of work: an id (the leading segment of
// every task path it produces), a filter selecting which events it sees,
// and its handler.
type Function struct {
	ID      string
	Filter  event.Filter
	Handler Handler
}

// New constructs a Function. id must be non-empty and stable across
// deploys — it is embedded in every task path this function ever produces.
func New(id string, filter event.Filter, handler Handler) *Function {
	return &Function{ID: id, Filter: filter, Handler: handler}
}

// Router holds a mount's registered functions, preserving registration
// order for deterministic fan-out and matching.
type Router struct {
	mu    sync.RWMutex
	funcs []*Function
	byID  map[string]*Function
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{byID: make(map[string]*Function)}
}

// Register adds f to the router. It returns ErrDuplicateFunctionID if a
// function with the same id is already registered.
func (r *Router) Register(f *Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.ID == "" {
		return fmt.Errorf("registry: function id must not be empty")
	}
	if _, exists := r.byID[f.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateFunctionID, f.ID)
	}
	r.byID[f.ID] = f
	r.funcs = append(r.funcs, f)
	return nil
}

// FilterForEvent returns every registered function whose filter accepts
// evt, in registration order.
func (r *Router) FilterForEvent(evt event.Event) []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Function
	for _, f := range r.funcs {
		if f.Filter == nil || f.Filter(evt) {
			matched = append(matched, f)
		}
	}
	return matched
}

// ByID returns the function registered under id, if any.
func (r *Router) ByID(id string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	return f, ok
}

// IDs returns every registered function id, in registration order.
func (r *Router) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.funcs))
	for i, f := range r.funcs {
		ids[i] = f.ID
	}
	return ids
}
