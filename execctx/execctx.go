// Package execctx defines the wire-level execution context and envelope
// (the only format the core defines, per the transport contract) and the
// colon-joined task path arithmetic used to compose and decompose step
// identity.
package execctx

import (
	"encoding/json"
	"strings"

	"github.com/conduitrun/conduit/id"
)

// ExecutionContext is the per-invocation tuple carried across dispatches.
// TaskID, when present, names the specific leaf task the current invocation
// is responsible for advancing. Its absence means "top-level re-entry:
// continue from wherever the handler now stands."
type ExecutionContext struct {
	ExecutionID id.ID   `json:"executionId"`
	Timestamp   int64   `json:"timestamp"`
	TaskID      *string `json:"taskId,omitempty"`
}

// Envelope is the only wire/file format the core defines. Context is absent
// on top-level publishes and present on continuations.
type Envelope struct {
	Event   json.RawMessage   `json:"event"`
	Context *ExecutionContext `json:"context,omitempty"`
}

// Join composes a child task path from a parent path and a step key. The
// first segment of any path is always a function id (parent == "").
func Join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + ":" + key
}

// Parent strips the last colon-separated segment from path, returning the
// remaining prefix and true, or ("", false) if path has no parent (i.e. it
// is a bare function id).
func Parent(path string) (string, bool) {
	idx := strings.LastIndex(path, ":")
	if idx < 0 {
		return "", false
	}
	return path[:idx], true
}

// Root returns the leading segment of path — the function id.
func Root(path string) string {
	idx := strings.Index(path, ":")
	if idx < 0 {
		return path
	}
	return path[:idx]
}

// TargetsOrDescends reports whether taskID names fullPath itself or a
// descendant of it — i.e. whether taskID equals fullPath or starts with
// fullPath followed by the ":" separator.
func TargetsOrDescends(taskID, fullPath string) bool {
	return taskID == fullPath || strings.HasPrefix(taskID, fullPath+":")
}
