package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/middleware"
)

func TestChain_OrderAndPassthrough(t *testing.T) {
	t.Parallel()

	var order []string
	trace := func(name string) middleware.Middleware {
		return func(ctx context.Context, evt event.Event, next middleware.Next) error {
			order = append(order, name+":before")
			err := next(ctx)
			order = append(order, name+":after")
			return err
		}
	}

	chain := middleware.Chain(trace("outer"), trace("inner"))
	err := chain(context.Background(), event.Event{Type: "foo"}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("chain returned error: %v", err)
	}

	want := []string{"outer:before", "inner:before", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRecover_TurnsPanicIntoError(t *testing.T) {
	t.Parallel()

	mw := middleware.Recover()
	err := mw(context.Background(), event.Event{}, func(context.Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatalf("expected an error from a recovered panic")
	}
}

func TestLogging_DoesNotTreatInterruptAsFailure(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := middleware.Logging(logger)

	interrupted := &engine.Interrupt{Reason: engine.ReasonExecutionTriggered, Path: "func1:step1"}
	err := mw(context.Background(), event.Event{Type: "foo"}, func(context.Context) error {
		return interrupted
	})
	if !errors.Is(err, interrupted) {
		t.Fatalf("Logging swallowed or replaced the interrupt: %v", err)
	}
}
