// Package observability wires OpenTelemetry metrics for the two events the
// engine's own protocol can't be observed from outside: a step committing
// and an envelope leaving the mount for its next hop. It is intentionally
// smaller than the teacher's extension-bus-backed observability package,
// which instrumented several subsystems this port does not carry forward
// (see DESIGN.md).
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder emits counters for step commits and outbound publishes. A nil
// *Recorder is safe to call methods on — every method no-ops — so mounts
// configured without a meter provider pay nothing for it.
type Recorder struct {
	stepsCommitted metric.Int64Counter
	publishes      metric.Int64Counter
}

// NewRecorder builds a Recorder against meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	stepsCommitted, err := meter.Int64Counter("conduit.steps.committed",
		metric.WithDescription("Number of steps committed"))
	if err != nil {
		return nil, err
	}
	publishes, err := meter.Int64Counter("conduit.publishes",
		metric.WithDescription("Number of envelopes published"))
	if err != nil {
		return nil, err
	}
	return &Recorder{stepsCommitted: stepsCommitted, publishes: publishes}, nil
}

// RecordStepCommitted increments the step-commit counter for the given
// task path.
func (r *Recorder) RecordStepCommitted(ctx context.Context, path string) {
	if r == nil {
		return
	}
	r.stepsCommitted.Add(ctx, 1, metric.WithAttributes(attribute.String("task_path", path)))
}

// RecordPublish increments the publish counter.
func (r *Recorder) RecordPublish(ctx context.Context) {
	if r == nil {
		return
	}
	r.publishes.Add(ctx, 1)
}
