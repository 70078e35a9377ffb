// Package memory is a fully in-memory implementation of store.Store,
// intended for unit tests and local development. Nothing here survives
// process restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.BulkStore = (*Store)(nil)
)

// Store is a map+mutex backed store.Store. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	// executions tracks which execution IDs have begun and not yet been
	// disposed.
	executions map[string]struct{}

	// tasks tracks in-progress task paths, keyed by "execID:path".
	tasks map[string]struct{}

	// results holds committed task results, keyed by "execID:path".
	results map[string][]byte
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		executions: make(map[string]struct{}),
		tasks:      make(map[string]struct{}),
		results:    make(map[string][]byte),
	}
}

func taskKey(execID id.ID, path string) string {
	return execID.String() + ":" + path
}

// BeginExecution marks execID as in progress. Idempotent: beginning an
// already-begun execution is not an error, matching the "at least once
// delivery" tolerance the engine requires of every Store method.
func (s *Store) BeginExecution(_ context.Context, execID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execID.String()] = struct{}{}
	return nil
}

// IsExecutionInProgress reports whether execID has begun and not yet been
// disposed.
func (s *Store) IsExecutionInProgress(_ context.Context, execID id.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.executions[execID.String()]
	return ok, nil
}

// BeginExecutionTask marks path as in progress for execID.
func (s *Store) BeginExecutionTask(_ context.Context, execID id.ID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskKey(execID, path)] = struct{}{}
	return nil
}

// IsExecutionTaskInProgress reports whether path has begun and not yet
// committed a result for execID.
func (s *Store) IsExecutionTaskInProgress(_ context.Context, execID id.ID, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[taskKey(execID, path)]
	return ok, nil
}

// GetExecutionTaskResult retrieves the committed result for path, if any.
func (s *Store) GetExecutionTaskResult(_ context.Context, execID id.ID, path string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.results[taskKey(execID, path)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, true, nil
}

// CommitExecutionTaskResult persists result for path and clears its
// in-progress marker.
func (s *Store) CommitExecutionTaskResult(_ context.Context, execID id.ID, path string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey(execID, path)
	cp := make([]byte, len(result))
	copy(cp, result)
	s.results[key] = cp
	delete(s.tasks, key)
	return nil
}

// DisposeExecution removes every trace of execID: its in-progress marker,
// any lingering in-progress tasks, and every committed result.
func (s *Store) DisposeExecution(_ context.Context, execID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.executions, execID.String())

	prefix := execID.String() + ":"
	for k := range s.tasks {
		if strings.HasPrefix(k, prefix) {
			delete(s.tasks, k)
		}
	}
	for k := range s.results {
		if strings.HasPrefix(k, prefix) {
			delete(s.results, k)
		}
	}
	return nil
}

// GetExecutionTaskResults retrieves every committed result for execID in
// one call, keyed by task path. Callers still fall back to
// GetExecutionTaskResult for paths absent from the returned map.
func (s *Store) GetExecutionTaskResults(_ context.Context, execID id.ID) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := execID.String() + ":"
	out := make(map[string][]byte)
	for k, v := range s.results {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		path := k[len(prefix):]
		cp := make([]byte, len(v))
		copy(cp, v)
		out[path] = cp
	}
	return out, nil
}

// Executions returns the IDs of every execution currently in progress,
// sorted for deterministic inspection in tests and debugging tools.
func (s *Store) Executions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.executions))
	for k := range s.executions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
