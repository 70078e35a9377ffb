// Package redis implements store.Store using Redis: a flag key for
// execution-in-progress, and a hash each for in-progress task markers and
// committed task results, matching spec.md's remote key-value reference
// layout (`{executionId}-transactions` / `{executionId}-results` hashes
// plus an `{executionId}` flag key).
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/conduitrun/conduit/id"
	"github.com/conduitrun/conduit/store"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.BulkStore = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets an expiration applied to every key written for an
// execution, refreshed on every subsequent write. Zero (the default)
// means keys never expire on their own; only DisposeExecution removes
// them.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// Store is a Redis-backed store.Store. The caller owns the client's
// connection lifecycle.
type Store struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// New creates a Redis-backed store using client.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client}
	for _, o := range opts {
		o(s)
	}
	return s
}

func flagKey(execID id.ID) string {
	return execID.String()
}

func transactionsKey(execID id.ID) string {
	return execID.String() + "-transactions"
}

func resultsKey(execID id.ID) string {
	return execID.String() + "-results"
}

// BeginExecution sets the execution's flag key.
func (s *Store) BeginExecution(ctx context.Context, execID id.ID) error {
	if err := s.client.Set(ctx, flagKey(execID), "1", s.ttl).Err(); err != nil {
		return &store.Error{Op: "BeginExecution", Err: err}
	}
	return nil
}

// IsExecutionInProgress reports whether the execution's flag key exists.
func (s *Store) IsExecutionInProgress(ctx context.Context, execID id.ID) (bool, error) {
	n, err := s.client.Exists(ctx, flagKey(execID)).Result()
	if err != nil {
		return false, &store.Error{Op: "IsExecutionInProgress", Err: err}
	}
	return n > 0, nil
}

// BeginExecutionTask sets path's field in the transactions hash.
func (s *Store) BeginExecutionTask(ctx context.Context, execID id.ID, path string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, transactionsKey(execID), path, "1")
	s.refreshTTL(ctx, pipe, transactionsKey(execID))
	if _, err := pipe.Exec(ctx); err != nil {
		return &store.Error{Op: "BeginExecutionTask", Err: err}
	}
	return nil
}

// IsExecutionTaskInProgress reports whether path's field exists in the
// transactions hash.
func (s *Store) IsExecutionTaskInProgress(ctx context.Context, execID id.ID, path string) (bool, error) {
	ok, err := s.client.HExists(ctx, transactionsKey(execID), path).Result()
	if err != nil {
		return false, &store.Error{Op: "IsExecutionTaskInProgress", Err: err}
	}
	return ok, nil
}

// GetExecutionTaskResult retrieves path's field from the results hash.
func (s *Store) GetExecutionTaskResult(ctx context.Context, execID id.ID, path string) ([]byte, bool, error) {
	val, err := s.client.HGet(ctx, resultsKey(execID), path).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, &store.Error{Op: "GetExecutionTaskResult", Err: err}
	}
	return []byte(val), true, nil
}

// CommitExecutionTaskResult writes path's field in the results hash and
// removes it from the transactions hash, in a single pipeline.
func (s *Store) CommitExecutionTaskResult(ctx context.Context, execID id.ID, path string, result []byte) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, resultsKey(execID), path, string(result))
	pipe.HDel(ctx, transactionsKey(execID), path)
	s.refreshTTL(ctx, pipe, resultsKey(execID))
	if _, err := pipe.Exec(ctx); err != nil {
		return &store.Error{Op: "CommitExecutionTaskResult", Err: err}
	}
	return nil
}

// DisposeExecution deletes the execution's flag key and both hashes.
func (s *Store) DisposeExecution(ctx context.Context, execID id.ID) error {
	if err := s.client.Del(ctx, flagKey(execID), transactionsKey(execID), resultsKey(execID)).Err(); err != nil {
		return &store.Error{Op: "DisposeExecution", Err: err}
	}
	return nil
}

// GetExecutionTaskResults reads the entire results hash in one call,
// satisfying store.BulkStore.
func (s *Store) GetExecutionTaskResults(ctx context.Context, execID id.ID) (map[string][]byte, error) {
	vals, err := s.client.HGetAll(ctx, resultsKey(execID)).Result()
	if err != nil {
		return nil, &store.Error{Op: "GetExecutionTaskResults", Err: fmt.Errorf("hgetall: %w", err)}
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}

func (s *Store) refreshTTL(ctx context.Context, pipe goredis.Pipeliner, key string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, key, s.ttl)
}
