package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// BeginExecution inserts execID, doing nothing if it already exists.
func (s *Store) BeginExecution(ctx context.Context, execID id.ID) error {
	m := &executionModel{ID: execID.String(), CreatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().Model(m).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return &store.Error{Op: "BeginExecution", Err: err}
	}
	return nil
}

// IsExecutionInProgress reports whether execID has a row in
// conduit_executions.
func (s *Store) IsExecutionInProgress(ctx context.Context, execID id.ID) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*executionModel)(nil)).
		Where("id = ?", execID.String()).
		Exists(ctx)
	if err != nil {
		return false, &store.Error{Op: "IsExecutionInProgress", Err: err}
	}
	return exists, nil
}

// BeginExecutionTask inserts an in-progress row for path, doing nothing
// if one already exists (whether in progress or already committed).
func (s *Store) BeginExecutionTask(ctx context.Context, execID id.ID, path string) error {
	m := &taskModel{ExecID: execID.String(), Path: path, State: "in_progress"}
	_, err := s.db.NewInsert().Model(m).On("CONFLICT (exec_id, path) DO NOTHING").Exec(ctx)
	if err != nil {
		return &store.Error{Op: "BeginExecutionTask", Err: err}
	}
	return nil
}

// IsExecutionTaskInProgress reports whether path's row exists and is
// still in the "in_progress" state.
func (s *Store) IsExecutionTaskInProgress(ctx context.Context, execID id.ID, path string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*taskModel)(nil)).
		Where("exec_id = ? AND path = ? AND state = 'in_progress'", execID.String(), path).
		Exists(ctx)
	if err != nil {
		return false, &store.Error{Op: "IsExecutionTaskInProgress", Err: err}
	}
	return exists, nil
}

// GetExecutionTaskResult retrieves the committed result for path, if any.
func (s *Store) GetExecutionTaskResult(ctx context.Context, execID id.ID, path string) ([]byte, bool, error) {
	m := new(taskModel)
	err := s.db.NewSelect().
		Model(m).
		Where("exec_id = ? AND path = ? AND state = 'committed'", execID.String(), path).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, &store.Error{Op: "GetExecutionTaskResult", Err: err}
	}
	return m.Result, true, nil
}

// CommitExecutionTaskResult upserts path's row into the "committed"
// state with result, overwriting any lingering in-progress row.
func (s *Store) CommitExecutionTaskResult(ctx context.Context, execID id.ID, path string, result []byte) error {
	now := time.Now().UTC()
	m := &taskModel{ExecID: execID.String(), Path: path, State: "committed", Result: result, CommittedAt: &now}
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (exec_id, path) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("result = EXCLUDED.result").
		Set("committed_at = EXCLUDED.committed_at").
		Exec(ctx)
	if err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	return nil
}

// DisposeExecution deletes execID's row; ON DELETE CASCADE removes every
// task row for it in the same statement.
func (s *Store) DisposeExecution(ctx context.Context, execID id.ID) error {
	_, err := s.db.NewDelete().
		Model((*executionModel)(nil)).
		Where("id = ?", execID.String()).
		Exec(ctx)
	if err != nil {
		return &store.Error{Op: "DisposeExecution", Err: err}
	}
	return nil
}

// GetExecutionTaskResults retrieves every committed result for execID in
// one query, satisfying store.BulkStore.
func (s *Store) GetExecutionTaskResults(ctx context.Context, execID id.ID) (map[string][]byte, error) {
	var models []taskModel
	err := s.db.NewSelect().
		Model(&models).
		Where("exec_id = ? AND state = 'committed'", execID.String()).
		Scan(ctx)
	if err != nil {
		return nil, &store.Error{Op: "GetExecutionTaskResults", Err: fmt.Errorf("scan: %w", err)}
	}

	out := make(map[string][]byte, len(models))
	for i := range models {
		out[models[i].Path] = models[i].Result
	}
	return out, nil
}
