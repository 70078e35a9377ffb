// Package store defines the durability contract every backend
// implementation (memory, filesystem, redis, postgres) must satisfy: the
// primitives for tracking an execution's lifetime and each of its tasks'
// progress and committed results.
package store

import (
	"context"
	"fmt"

	"github.com/conduitrun/conduit/id"
)

// EmptyResult is the sentinel value committed for a step whose callback
// returns no meaningful value. It is never passed through json.Unmarshal —
// callers must compare the raw bytes against it before decoding.
var EmptyResult = []byte("<empty_execution_result>")

// IsEmptyResult reports whether raw is the empty-result sentinel.
func IsEmptyResult(raw []byte) bool {
	return string(raw) == string(EmptyResult)
}

// TaskState is the lifecycle state of a single task path within an
// execution. mount.Debug does not report it.
type TaskState int

const (
	TaskAbsent TaskState = iota
	TaskInProgress
	TaskCommitted
)

func (s TaskState) String() string {
	switch s {
	case TaskInProgress:
		return "in-progress"
	case TaskCommitted:
		return "committed"
	default:
		return "absent"
	}
}

// Error wraps a backend-specific failure with the store operation that
// produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Store is the durability contract the engine and mount packages depend on.
// Every method must be safe for concurrent use.
type Store interface {
	// BeginExecution records that executionID now exists and is in
	// progress. Called exactly once, on the first (top-level) delivery for
	// a fresh execution.
	BeginExecution(ctx context.Context, executionID id.ID) error

	// IsExecutionInProgress reports whether executionID exists and has not
	// been disposed.
	IsExecutionInProgress(ctx context.Context, executionID id.ID) (bool, error)

	// BeginExecutionTask marks taskPath as claimed within executionID. It
	// must be safe to call at most once per task path in the absence of
	// concurrent writers; concurrent callers racing on the same task path
	// should converge on a single winner where the backend can arrange it
	// (see per-backend documentation for the strength of that guarantee).
	BeginExecutionTask(ctx context.Context, executionID id.ID, taskPath string) error

	// IsExecutionTaskInProgress reports whether taskPath has been begun but
	// not yet committed.
	IsExecutionTaskInProgress(ctx context.Context, executionID id.ID, taskPath string) (bool, error)

	// GetExecutionTaskResult returns the committed value for taskPath, or
	// ok == false if no result has been committed yet.
	GetExecutionTaskResult(ctx context.Context, executionID id.ID, taskPath string) (value []byte, ok bool, err error)

	// CommitExecutionTaskResult records the final value for taskPath. It is
	// called at most once per task path (the at-most-once execution
	// invariant depends on this).
	CommitExecutionTaskResult(ctx context.Context, executionID id.ID, taskPath string, value []byte) error

	// DisposeExecution releases every resource associated with executionID.
	// Called once, when the root handler runs to completion.
	DisposeExecution(ctx context.Context, executionID id.ID) error
}

// BulkStore is an optional capability: backends that can fetch every
// committed result for an execution in one round trip implement it so that
// mount can prefetch a replay's cache instead of issuing one lookup per
// step.
type BulkStore interface {
	GetExecutionTaskResults(ctx context.Context, executionID id.ID) (map[string][]byte, error)
}
