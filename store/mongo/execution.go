package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

// isNoDocuments reports whether err indicates a FindOne with no match.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isDuplicateKey reports whether err is a unique-index violation, the
// signal BeginExecution and BeginExecutionTask treat as "already begun"
// rather than a real failure.
func isDuplicateKey(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}

// BeginExecution inserts execID's flag document, tolerating a duplicate
// key on redelivery.
func (s *Store) BeginExecution(ctx context.Context, execID id.ID) error {
	m := executionModel{ID: execID.String(), CreatedAt: time.Now().UTC()}
	_, err := s.db.Collection(collExecutions).InsertOne(ctx, m)
	if err != nil && !isDuplicateKey(err) {
		return &store.Error{Op: "BeginExecution", Err: err}
	}
	return nil
}

// IsExecutionInProgress reports whether execID's flag document exists.
func (s *Store) IsExecutionInProgress(ctx context.Context, execID id.ID) (bool, error) {
	n, err := s.db.Collection(collExecutions).CountDocuments(ctx, bson.M{"_id": execID.String()})
	if err != nil {
		return false, &store.Error{Op: "IsExecutionInProgress", Err: err}
	}
	return n > 0, nil
}

// BeginExecutionTask upserts an in-progress document for path using
// $setOnInsert only, so a document that already exists — in either state —
// is left untouched; the unique (exec_id, path) index EnsureIndexes
// creates is what makes this a real conditional write rather than a
// last-writer-wins update.
func (s *Store) BeginExecutionTask(ctx context.Context, execID id.ID, path string) error {
	filter := bson.M{"exec_id": execID.String(), "path": path}
	update := bson.M{"$setOnInsert": bson.M{
		"exec_id": execID.String(),
		"path":    path,
		"state":   "in_progress",
	}}
	_, err := s.db.Collection(collTasks).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil && !isDuplicateKey(err) {
		return &store.Error{Op: "BeginExecutionTask", Err: err}
	}
	return nil
}

// IsExecutionTaskInProgress reports whether path's document exists and is
// still in the "in_progress" state.
func (s *Store) IsExecutionTaskInProgress(ctx context.Context, execID id.ID, path string) (bool, error) {
	n, err := s.db.Collection(collTasks).CountDocuments(ctx, bson.M{
		"exec_id": execID.String(), "path": path, "state": "in_progress",
	})
	if err != nil {
		return false, &store.Error{Op: "IsExecutionTaskInProgress", Err: err}
	}
	return n > 0, nil
}

// GetExecutionTaskResult retrieves the committed result for path, if any.
func (s *Store) GetExecutionTaskResult(ctx context.Context, execID id.ID, path string) ([]byte, bool, error) {
	var m taskModel
	err := s.db.Collection(collTasks).FindOne(ctx, bson.M{
		"exec_id": execID.String(), "path": path, "state": "committed",
	}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, false, nil
		}
		return nil, false, &store.Error{Op: "GetExecutionTaskResult", Err: err}
	}
	return m.Result, true, nil
}

// CommitExecutionTaskResult upserts path's document into the "committed"
// state with result, overwriting any lingering in-progress document —
// the same replace-on-conflict shape store/postgres's
// CommitExecutionTaskResult uses.
func (s *Store) CommitExecutionTaskResult(ctx context.Context, execID id.ID, path string, result []byte) error {
	now := time.Now().UTC()
	filter := bson.M{"exec_id": execID.String(), "path": path}
	m := taskModel{ExecID: execID.String(), Path: path, State: "committed", Result: result, CommittedAt: &now}
	_, err := s.db.Collection(collTasks).ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
	if err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	return nil
}

// DisposeExecution deletes execID's flag document and every task document
// for it. The two deletes are not wrapped in a multi-document transaction
// (the teacher's own mongo store never opens one either); a crash between
// the two leaves orphaned task documents behind rather than an
// inconsistent in-progress flag, which is the safer half to leave stale.
func (s *Store) DisposeExecution(ctx context.Context, execID id.ID) error {
	if _, err := s.db.Collection(collExecutions).DeleteOne(ctx, bson.M{"_id": execID.String()}); err != nil {
		return &store.Error{Op: "DisposeExecution", Err: fmt.Errorf("delete execution: %w", err)}
	}
	if _, err := s.db.Collection(collTasks).DeleteMany(ctx, bson.M{"exec_id": execID.String()}); err != nil {
		return &store.Error{Op: "DisposeExecution", Err: fmt.Errorf("delete tasks: %w", err)}
	}
	return nil
}

// GetExecutionTaskResults retrieves every committed result for execID in
// one query, satisfying store.BulkStore.
func (s *Store) GetExecutionTaskResults(ctx context.Context, execID id.ID) (map[string][]byte, error) {
	cursor, err := s.db.Collection(collTasks).Find(ctx, bson.M{"exec_id": execID.String(), "state": "committed"})
	if err != nil {
		return nil, &store.Error{Op: "GetExecutionTaskResults", Err: err}
	}
	defer cursor.Close(ctx)

	var models []taskModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, &store.Error{Op: "GetExecutionTaskResults", Err: fmt.Errorf("decode: %w", err)}
	}

	out := make(map[string][]byte, len(models))
	for i := range models {
		out[models[i].Path] = models[i].Result
	}
	return out, nil
}
