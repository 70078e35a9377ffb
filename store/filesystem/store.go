// Package filesystem is a directory-per-execution implementation of
// store.Store. It exists mainly for local development and small
// single-node deployments that want durability without an external
// database; the retrieval pack this module was built from has no
// filesystem-backed store to draw an idiom from, so this package sticks
// to os/path/filepath/io — the standard library is the right primitive
// for "one directory per execution, one file per task" and pulling in a
// third-party library here would buy nothing.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.BulkStore = (*Store)(nil)
)

// Store persists execution state as a directory tree rooted at Dir: one
// subdirectory per execution, and within it a "<sanitized-path>.transaction"
// marker file for every in-progress task and a "<sanitized-path>.result"
// file holding the committed bytes for every completed task.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. dir is created on first write if it
// does not already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) execDir(execID id.ID) string {
	return filepath.Join(s.dir, execID.String())
}

// sanitize turns a task path like "func1:step1" into a filesystem-safe
// stem; ":" is not portable across every filesystem this store might run
// on, so it is replaced with "__".
func sanitize(path string) string {
	return strings.ReplaceAll(path, ":", "__")
}

func (s *Store) transactionFile(execID id.ID, path string) string {
	return filepath.Join(s.execDir(execID), sanitize(path)+".transaction")
}

func (s *Store) resultFile(execID id.ID, path string) string {
	return filepath.Join(s.execDir(execID), sanitize(path)+".result")
}

// BeginExecution creates the execution's directory. Idempotent.
func (s *Store) BeginExecution(_ context.Context, execID id.ID) error {
	if err := os.MkdirAll(s.execDir(execID), 0o755); err != nil {
		return &store.Error{Op: "BeginExecution", Err: err}
	}
	return nil
}

// IsExecutionInProgress reports whether the execution's directory exists.
func (s *Store) IsExecutionInProgress(_ context.Context, execID id.ID) (bool, error) {
	_, err := os.Stat(s.execDir(execID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &store.Error{Op: "IsExecutionInProgress", Err: err}
}

// BeginExecutionTask creates the task's ".transaction" marker file.
func (s *Store) BeginExecutionTask(_ context.Context, execID id.ID, path string) error {
	if err := os.MkdirAll(s.execDir(execID), 0o755); err != nil {
		return &store.Error{Op: "BeginExecutionTask", Err: err}
	}
	f, err := os.Create(s.transactionFile(execID, path))
	if err != nil {
		return &store.Error{Op: "BeginExecutionTask", Err: err}
	}
	return f.Close()
}

// IsExecutionTaskInProgress reports whether the task's ".transaction"
// marker file exists.
func (s *Store) IsExecutionTaskInProgress(_ context.Context, execID id.ID, path string) (bool, error) {
	_, err := os.Stat(s.transactionFile(execID, path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &store.Error{Op: "IsExecutionTaskInProgress", Err: err}
}

// GetExecutionTaskResult reads the task's ".result" file, if any.
func (s *Store) GetExecutionTaskResult(_ context.Context, execID id.ID, path string) ([]byte, bool, error) {
	raw, err := os.ReadFile(s.resultFile(execID, path))
	if err == nil {
		return raw, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, &store.Error{Op: "GetExecutionTaskResult", Err: err}
}

// CommitExecutionTaskResult writes the task's ".result" file and removes
// its ".transaction" marker.
//
// The write and the marker removal are two separate filesystem calls, not
// one atomic transaction — a crash between them leaves a committed result
// with a stale in-progress marker, which is harmless (GetExecutionTaskResult
// is checked before IsExecutionTaskInProgress by the engine) but is worth
// naming as a limitation of this collaborator relative to a real database.
func (s *Store) CommitExecutionTaskResult(_ context.Context, execID id.ID, path string, result []byte) error {
	if err := os.MkdirAll(s.execDir(execID), 0o755); err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	tmp := s.resultFile(execID, path) + ".tmp"
	if err := os.WriteFile(tmp, result, 0o644); err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	if err := os.Rename(tmp, s.resultFile(execID, path)); err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	if err := os.Remove(s.transactionFile(execID, path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	return nil
}

// DisposeExecution removes the execution's entire directory.
func (s *Store) DisposeExecution(_ context.Context, execID id.ID) error {
	if err := os.RemoveAll(s.execDir(execID)); err != nil {
		return &store.Error{Op: "DisposeExecution", Err: err}
	}
	return nil
}

// GetExecutionTaskResults reads every ".result" file in the execution's
// directory in one pass, satisfying store.BulkStore.
func (s *Store) GetExecutionTaskResults(_ context.Context, execID id.ID) (map[string][]byte, error) {
	entries, err := os.ReadDir(s.execDir(execID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]byte{}, nil
		}
		return nil, &store.Error{Op: "GetExecutionTaskResults", Err: err}
	}

	out := make(map[string][]byte)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		const suffix = ".result"
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		stem := strings.TrimSuffix(name, suffix)
		raw, err := os.ReadFile(filepath.Join(s.execDir(execID), name))
		if err != nil {
			return nil, &store.Error{Op: "GetExecutionTaskResults", Err: fmt.Errorf("%s: %w", name, err)}
		}
		out[strings.ReplaceAll(stem, "__", ":")] = raw
	}
	return out, nil
}
