// Package mongo implements store.Store on MongoDB: one document per
// execution in a "conduit_executions" collection as the in-progress
// flag, and one document per task in a "conduit_tasks" collection whose
// "state" field distinguishes in_progress from committed — the same
// two-collection split the teacher's own MongoDB-backed store keeps
// between its workflow-run and checkpoint collections, minus the ORM
// wrapper the teacher layers over the driver (this package talks to
// go.mongodb.org/mongo-driver/v2 directly, matching the way
// store/postgres talks to Bun and store/redis talks to go-redis without
// an extra abstraction in between).
package mongo

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/conduitrun/conduit/store"
)

const (
	collExecutions = "conduit_executions"
	collTasks      = "conduit_tasks"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.BulkStore = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for index creation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Store is a MongoDB-backed store.Store. The caller owns the
// *mongo.Client's connection lifecycle; Store never closes it.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

// New wraps db, ready to EnsureIndexes and use.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *mongo.Database for advanced usage.
func (s *Store) DB() *mongo.Database { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op — the caller owns the *mongo.Client lifecycle.
func (s *Store) Close() error { return nil }

// EnsureIndexes creates the unique compound index on (exec_id, path) that
// BeginExecutionTask's upsert relies on to behave like a conditional
// write, mirroring the unique index the teacher's own mongo store builds
// for its checkpoints collection in migrationIndexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	name, err := s.db.Collection(collTasks).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "exec_id", Value: 1}, {Key: "path", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	s.logger.Info("ensured index", "collection", collTasks, "index", name)
	return nil
}
