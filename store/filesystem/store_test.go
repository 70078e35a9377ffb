package filesystem_test

import (
	"context"
	"testing"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
	"github.com/conduitrun/conduit/store/filesystem"
)

func TestStore_TaskLifecycle(t *testing.T) {
	t.Parallel()

	s := filesystem.New(t.TempDir())
	ctx := context.Background()
	execID := id.New()
	const path = "func1:step1"

	if err := s.BeginExecution(ctx, execID); err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}
	inProgress, err := s.IsExecutionInProgress(ctx, execID)
	if err != nil || !inProgress {
		t.Fatalf("IsExecutionInProgress = (%v, %v), want (true, nil)", inProgress, err)
	}

	if err := s.BeginExecutionTask(ctx, execID, path); err != nil {
		t.Fatalf("BeginExecutionTask: %v", err)
	}
	taskInProgress, err := s.IsExecutionTaskInProgress(ctx, execID, path)
	if err != nil || !taskInProgress {
		t.Fatalf("IsExecutionTaskInProgress = (%v, %v), want (true, nil)", taskInProgress, err)
	}

	if _, ok, err := s.GetExecutionTaskResult(ctx, execID, path); err != nil || ok {
		t.Fatalf("GetExecutionTaskResult before commit = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := s.CommitExecutionTaskResult(ctx, execID, path, []byte(`"done"`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}

	taskInProgress, err = s.IsExecutionTaskInProgress(ctx, execID, path)
	if err != nil || taskInProgress {
		t.Fatalf("IsExecutionTaskInProgress after commit = (%v, %v), want (false, nil)", taskInProgress, err)
	}

	raw, ok, err := s.GetExecutionTaskResult(ctx, execID, path)
	if err != nil || !ok || string(raw) != `"done"` {
		t.Fatalf("GetExecutionTaskResult = (%s, %v, %v), want (\"done\", true, nil)", raw, ok, err)
	}
}

func TestStore_SanitizesColonInTaskPath(t *testing.T) {
	t.Parallel()

	s := filesystem.New(t.TempDir())
	ctx := context.Background()
	execID := id.New()

	if err := s.CommitExecutionTaskResult(ctx, execID, "func1:step1:substep", []byte(`1`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}
	raw, ok, err := s.GetExecutionTaskResult(ctx, execID, "func1:step1:substep")
	if err != nil || !ok || string(raw) != "1" {
		t.Fatalf("GetExecutionTaskResult = (%s, %v, %v)", raw, ok, err)
	}
}

func TestStore_DisposeExecutionRemovesDirectory(t *testing.T) {
	t.Parallel()

	s := filesystem.New(t.TempDir())
	ctx := context.Background()
	execID := id.New()

	if err := s.BeginExecution(ctx, execID); err != nil {
		t.Fatalf("BeginExecution: %v", err)
	}
	if err := s.CommitExecutionTaskResult(ctx, execID, "func1:step1", []byte(`1`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}

	if err := s.DisposeExecution(ctx, execID); err != nil {
		t.Fatalf("DisposeExecution: %v", err)
	}

	inProgress, err := s.IsExecutionInProgress(ctx, execID)
	if err != nil || inProgress {
		t.Fatalf("IsExecutionInProgress after dispose = (%v, %v), want (false, nil)", inProgress, err)
	}
	if _, ok, err := s.GetExecutionTaskResult(ctx, execID, "func1:step1"); err != nil || ok {
		t.Fatalf("GetExecutionTaskResult after dispose = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestStore_UnknownExecutionIsNotInProgress(t *testing.T) {
	t.Parallel()

	s := filesystem.New(t.TempDir())
	inProgress, err := s.IsExecutionInProgress(context.Background(), id.New())
	if err != nil || inProgress {
		t.Fatalf("IsExecutionInProgress = (%v, %v), want (false, nil)", inProgress, err)
	}
}

func TestStore_GetExecutionTaskResultsBulk(t *testing.T) {
	t.Parallel()

	var s store.BulkStore = filesystem.New(t.TempDir())
	ctx := context.Background()
	execID := id.New()

	concrete := s.(*filesystem.Store)
	if err := concrete.CommitExecutionTaskResult(ctx, execID, "func1:step1", []byte(`1`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}
	if err := concrete.CommitExecutionTaskResult(ctx, execID, "func1:step2", []byte(`2`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}

	results, err := s.GetExecutionTaskResults(ctx, execID)
	if err != nil {
		t.Fatalf("GetExecutionTaskResults: %v", err)
	}
	if len(results) != 2 || string(results["func1:step1"]) != "1" || string(results["func1:step2"]) != "2" {
		t.Fatalf("results = %v", results)
	}
}

func TestStore_GetExecutionTaskResultsOnMissingDirectory(t *testing.T) {
	t.Parallel()

	s := filesystem.New(t.TempDir())
	results, err := s.GetExecutionTaskResults(context.Background(), id.New())
	if err != nil {
		t.Fatalf("GetExecutionTaskResults: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results = %v, want empty", results)
	}
}
