package cron_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	conduit "github.com/conduitrun/conduit"
	"github.com/conduitrun/conduit/cron"
	"github.com/conduitrun/conduit/dispatcher/inprocess"
	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/mount"
	"github.com/conduitrun/conduit/store/memory"
)

// TestScheduler_PublishesThroughRealWorker wires a *conduit.Worker as a
// cron.Publisher end to end: if Publisher's signature ever drifted from
// Worker.Publish's again, this would fail to compile.
func TestScheduler_PublishesThroughRealWorker(t *testing.T) {
	t.Parallel()

	var fired atomic.Int64

	w := conduit.New(conduit.WithStore(memory.New()))
	w.CreateFunction("tick-handler", func(evt event.Event) bool { return evt.Type == "tick" },
		func(ctx context.Context, evt event.Event, ec *engine.ExecCtx) error {
			fired.Add(1)
			return nil
		})

	var m *mount.Mount
	disp := inprocess.New(func(ctx context.Context, payload []byte) error {
		return m.Process(ctx, payload)
	})
	w.Configure(conduit.WithDispatcher(disp))

	var err error
	m, err = w.Mount()
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if err := disp.Start(context.Background()); err != nil {
		t.Fatalf("Start dispatcher: %v", err)
	}
	t.Cleanup(func() { _ = disp.Stop(context.Background()) })

	sched := cron.NewScheduler(w, nil)
	if _, err := sched.Register("*/1 * * * * *", "tick", map[string]any{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sched.Start()
	t.Cleanup(func() { sched.Stop() })

	deadline := time.After(3 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the cron-scheduled event to reach the function")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
