package mongo

import "time"

// executionModel is a document in conduit_executions: its mere existence
// is the "in progress" flag, the same role store/redis's flag key and
// store/postgres's conduit_executions row play.
type executionModel struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// taskModel is a document in conduit_tasks, keyed by the compound unique
// index on (exec_id, path). State is "in_progress" or "committed";
// Result is nil until committed.
type taskModel struct {
	ExecID      string     `bson:"exec_id"`
	Path        string     `bson:"path"`
	State       string     `bson:"state"`
	Result      []byte     `bson:"result,omitempty"`
	CommittedAt *time.Time `bson:"committed_at,omitempty"`
}
