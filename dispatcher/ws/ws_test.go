package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conduitrun/conduit/dispatcher"
	"github.com/conduitrun/conduit/engine"
	"github.com/conduitrun/conduit/event"
	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/mount"
	"github.com/conduitrun/conduit/registry"
	"github.com/conduitrun/conduit/store"

	conduitws "github.com/conduitrun/conduit/dispatcher/ws"
)

// memStore is the same tiny thread-safe store.Store duplicated across this
// module's dispatcher packages so each package's tests stand alone.
type memStore struct {
	mu         sync.Mutex
	executions map[string]bool
	committed  map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{executions: map[string]bool{}, committed: map[string][]byte{}}
}

func (s *memStore) BeginExecution(_ context.Context, execID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execID.String()] = true
	return nil
}

func (s *memStore) IsExecutionInProgress(_ context.Context, execID id.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions[execID.String()], nil
}

func (s *memStore) BeginExecutionTask(context.Context, id.ID, string) error { return nil }

func (s *memStore) IsExecutionTaskInProgress(context.Context, id.ID, string) (bool, error) {
	return false, nil
}

func (s *memStore) GetExecutionTaskResult(_ context.Context, execID id.ID, path string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.committed[execID.String()+"|"+path]
	return v, ok, nil
}

func (s *memStore) CommitExecutionTaskResult(_ context.Context, execID id.ID, path string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed[execID.String()+"|"+path] = value
	return nil
}

func (s *memStore) DisposeExecution(_ context.Context, execID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executions, execID.String())
	return nil
}

var _ store.Store = (*memStore)(nil)

func TestDispatch_DeliversEnvelopeOverWebSocket(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	called := make(chan struct{}, 1)
	fn := registry.New("func1", event.TypeIs("foo"), func(context.Context, event.Event, *engine.ExecCtx) error {
		called <- struct{}{}
		return nil
	})

	m, err := mount.New([]*registry.Function{fn}, mount.Options{Store: s, ExecutionMode: mount.RunUntilError})
	if err != nil {
		t.Fatalf("mount.New: %v", err)
	}

	srv := httptest.NewServer(conduitws.Mount(m))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := conduitws.Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Dispatch(ctx, []byte(`{"event":{"type":"foo"}}`)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestDispatch_SurfacesProcessingError(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	m, err := mount.New([]*registry.Function{}, mount.Options{Store: s, ExecutionMode: mount.RunUntilError})
	if err != nil {
		t.Fatalf("mount.New: %v", err)
	}

	srv := httptest.NewServer(conduitws.Mount(m))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := conduitws.Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	// An event object with no "type" field fails event.DefaultSchema inside
	// Process, before Execute ever runs.
	if err := d.Dispatch(ctx, []byte(`{"event":{"data":{"x":1}}}`)); err == nil {
		t.Fatal("expected Dispatch to surface the remote processing error")
	}
}

func TestDispatch_RejectsDelay(t *testing.T) {
	t.Parallel()

	s := newMemStore()
	m, err := mount.New([]*registry.Function{}, mount.Options{Store: s, ExecutionMode: mount.RunUntilError})
	if err != nil {
		t.Fatalf("mount.New: %v", err)
	}

	srv := httptest.NewServer(conduitws.Mount(m))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d, err := conduitws.Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Dispatch(ctx, []byte("x"), dispatcher.WithDelay(50)); err == nil {
		t.Fatal("expected delayed dispatch to be rejected")
	}
}
