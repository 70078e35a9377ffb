//go:build integration

package mongo_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongomodule "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/conduitrun/conduit/id"
	conduitmongo "github.com/conduitrun/conduit/store/mongo"
)

// setupTestStore starts a MongoDB container and returns a connected Store
// with its indexes created, following the same testcontainers-go pattern
// the retrieval pack uses for its Postgres-backed store tests.
func setupTestStore(t *testing.T) *conduitmongo.Store {
	t.Helper()
	ctx := context.Background()

	container, err := mongomodule.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongodb container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(connStr))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	s := conduitmongo.New(client.Database("conduit_test"))
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return s
}

func TestStore_TaskLifecycle(t *testing.T) {
	s := setupTestStore(t)
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

	// A duplicate begin on an already in-progress path must not fail; the
	// unique (exec_id, path) index plus $setOnInsert make this idempotent.
	if err := s.BeginExecutionTask(ctx, execID, path); err != nil {
		t.Fatalf("BeginExecutionTask (duplicate): %v", err)
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

func TestStore_BeginExecutionTaskDoesNotRevertACommittedTask(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	execID := id.New()
	const path = "func1:step1"

	if err := s.CommitExecutionTaskResult(ctx, execID, path, []byte(`1`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}
	if err := s.BeginExecutionTask(ctx, execID, path); err != nil {
		t.Fatalf("BeginExecutionTask: %v", err)
	}

	inProgress, err := s.IsExecutionTaskInProgress(ctx, execID, path)
	if err != nil || inProgress {
		t.Fatalf("IsExecutionTaskInProgress = (%v, %v), want (false, nil) — a committed task must stay committed", inProgress, err)
	}
	if _, ok, err := s.GetExecutionTaskResult(ctx, execID, path); err != nil || !ok {
		t.Fatalf("GetExecutionTaskResult = (_, %v, %v), want (_, true, nil)", ok, err)
	}
}

func TestStore_DisposeExecutionRemovesAllDocuments(t *testing.T) {
	s := setupTestStore(t)
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

func TestStore_GetExecutionTaskResultsBulk(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	execID := id.New()

	if err := s.CommitExecutionTaskResult(ctx, execID, "func1:step1", []byte(`1`)); err != nil {
		t.Fatalf("CommitExecutionTaskResult: %v", err)
	}
	if err := s.CommitExecutionTaskResult(ctx, execID, "func1:step2", []byte(`2`)); err != nil {
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
