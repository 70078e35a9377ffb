package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type executionModel struct {
	bun.BaseModel `bun:"table:conduit_executions"`

	ID        string    `bun:"id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type taskModel struct {
	bun.BaseModel `bun:"table:conduit_tasks"`

	ExecID      string     `bun:"exec_id,pk"`
	Path        string     `bun:"path,pk"`
	State       string     `bun:"state,notnull,default:'in_progress'"`
	Result      []byte     `bun:"result,type:bytea"`
	CommittedAt *time.Time `bun:"committed_at"`
}
