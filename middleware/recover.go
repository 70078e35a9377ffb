package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/conduitrun/conduit/event"
)

// Recover turns a panicking handler into a returned error, attaching a
// stack trace, so one runaway function cannot take the mount's dispatch
// loop down with it.
func Recover() Middleware {
	return func(ctx context.Context, evt event.Event, next Next) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("middleware: function panicked: %v\n%s", r, debug.Stack())
			}
		}()
		return next(ctx)
	}
}
