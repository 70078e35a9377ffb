package engine

import (
	"encoding/json"
	"fmt"

	"github.com/conduitrun/conduit/execctx"
	"github.com/conduitrun/conduit/store"
)

// Execute runs a single named step within ec's ambient path. Go disallows
// generic methods, so this is a package-level function rather than a
// method on ExecCtx (mirroring the shape of the teacher's own
// StepWithResult).
//
// On entry it computes fullPath = ec.Path:key and, in order:
//
//  1. Cached short-circuit — if a value is already committed for
//     fullPath, decode and return it. fn is not invoked.
//  2. Targeting — if ec.TaskID names fullPath itself or a descendant of
//     it, fn runs for real inside a child scope rooted at fullPath. A
//     normal return commits the result, computes fullPath's parent,
//     enqueues a continuation addressed to it, and raises an Interrupt.
//     An error from fn (including a deeper Interrupt) propagates
//     unchanged; nothing is committed.
//  3. Not yet started — fn is never invoked. If fullPath is already
//     in progress, raise an Interrupt so a concurrent or duplicate
//     delivery backs off. Otherwise claim it, enqueue a continuation
//     addressed to fullPath, and raise an Interrupt.
func Execute[T any](ec *ExecCtx, key string, fn func(*ExecCtx) (T, error)) (T, error) {
	var zero T
	fullPath := execctx.Join(ec.Path, key)

	if raw, ok, err := lookup(ec, fullPath); err != nil {
		return zero, fmt.Errorf("engine: lookup %q: %w", fullPath, err)
	} else if ok {
		if store.IsEmptyResult(raw) {
			return zero, nil
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("engine: decode cached result for %q: %w", fullPath, err)
		}
		return v, nil
	}

	if ec.TaskID != nil && execctx.TargetsOrDescends(*ec.TaskID, fullPath) {
		val, err := fn(ec.child(fullPath))
		if err != nil {
			return zero, err
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return zero, fmt.Errorf("engine: encode result for %q: %w", fullPath, err)
		}
		return zero, commitAndSuspend(ec, fullPath, raw)
	}

	return zero, notYetStarted(ec, fullPath)
}

// Step is Execute's no-result counterpart, for steps whose only purpose is
// a side effect. Its committed value is store.EmptyResult rather than an
// encoded zero value, matching the wire sentinel the specification names.
func Step(ec *ExecCtx, key string, fn func(*ExecCtx) error) error {
	fullPath := execctx.Join(ec.Path, key)

	if _, ok, err := lookup(ec, fullPath); err != nil {
		return fmt.Errorf("engine: lookup %q: %w", fullPath, err)
	} else if ok {
		return nil
	}

	if ec.TaskID != nil && execctx.TargetsOrDescends(*ec.TaskID, fullPath) {
		if err := fn(ec.child(fullPath)); err != nil {
			return err
		}
		return commitAndSuspend(ec, fullPath, store.EmptyResult)
	}

	return notYetStarted(ec, fullPath)
}

func lookup(ec *ExecCtx, fullPath string) ([]byte, bool, error) {
	if ec.Cache != nil {
		if raw, ok := ec.Cache[fullPath]; ok {
			return raw, true, nil
		}
	}
	return ec.Store.GetExecutionTaskResult(ec.Ctx, ec.ExecID, fullPath)
}

func commitAndSuspend(ec *ExecCtx, fullPath string, raw []byte) error {
	if err := ec.Store.CommitExecutionTaskResult(ec.Ctx, ec.ExecID, fullPath, raw); err != nil {
		return fmt.Errorf("engine: commit %q: %w", fullPath, err)
	}

	next := execctx.ExecutionContext{ExecutionID: ec.ExecID, Timestamp: ec.Timestamp}
	if parent, ok := execctx.Parent(fullPath); ok {
		next.TaskID = &parent
	}
	if err := ec.Continue(ec.Ctx, next); err != nil {
		return fmt.Errorf("engine: enqueue continuation for %q: %w", fullPath, err)
	}
	return &Interrupt{Reason: ReasonStepCommitted, Path: fullPath}
}

func notYetStarted(ec *ExecCtx, fullPath string) error {
	inProgress, err := ec.Store.IsExecutionTaskInProgress(ec.Ctx, ec.ExecID, fullPath)
	if err != nil {
		return fmt.Errorf("engine: check in-progress %q: %w", fullPath, err)
	}
	if inProgress {
		return &Interrupt{Reason: ReasonInProgress, Path: fullPath}
	}
	if err := ec.Store.BeginExecutionTask(ec.Ctx, ec.ExecID, fullPath); err != nil {
		return fmt.Errorf("engine: begin %q: %w", fullPath, err)
	}

	taskID := fullPath
	next := execctx.ExecutionContext{ExecutionID: ec.ExecID, Timestamp: ec.Timestamp, TaskID: &taskID}
	if err := ec.Continue(ec.Ctx, next); err != nil {
		return fmt.Errorf("engine: enqueue continuation for %q: %w", fullPath, err)
	}
	return &Interrupt{Reason: ReasonExecutionTriggered, Path: fullPath}
}
