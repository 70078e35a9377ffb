// Package river dispatches continuations as durable Postgres-backed jobs
// via github.com/riverqueue/river, grounded on the retrieval pack's own
// River usage in LiranCohen-skene's river/runner.go and river/workers.go:
// a river.Client[pgx.Tx] built with riverpgxv5.New(pool), one
// river.Worker[EnvelopeArgs] whose Work method is the sink, and
// client.Insert/InsertTx to enqueue. Unlike dispatcher/inprocess, delivery
// survives a process crash because the job row lives in Postgres, not in
// memory — this is the transport of choice for durable, at-least-once
// deployments running alongside store/postgres.
package river

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/conduitrun/conduit/dispatcher"
)

var _ dispatcher.Dispatcher = (*Dispatcher)(nil)

// Sink receives one envelope payload; conduit wires this to
// mount.Mount.Process.
type Sink func(ctx context.Context, payload []byte) error

// EnvelopeArgs is the River job argument type: one raw envelope.
type EnvelopeArgs struct {
	Payload []byte `json:"payload"`
}

// Kind implements river.JobArgs.
func (EnvelopeArgs) Kind() string { return "conduit_envelope" }

// envelopeWorker adapts a Sink to river.Worker[EnvelopeArgs].
type envelopeWorker struct {
	river.WorkerDefaults[EnvelopeArgs]
	sink Sink
}

// Work implements river.Worker.
func (w *envelopeWorker) Work(ctx context.Context, job *river.Job[EnvelopeArgs]) error {
	return w.sink(ctx, job.Args.Payload)
}

// errorLogger logs job failures and panics without altering River's
// default retry/discard behavior, grounded on skene's errorHandler.
type errorLogger struct {
	onError func(error)
}

func (h *errorLogger) HandleError(_ context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	if h.onError != nil {
		h.onError(fmt.Errorf("river: job %d (%s) failed: %w", job.ID, job.Kind, err))
	}
	return nil
}

func (h *errorLogger) HandlePanic(_ context.Context, job *rivertype.JobRow, panicVal any, _ string) *river.ErrorHandlerResult {
	if h.onError != nil {
		h.onError(fmt.Errorf("river: job %d (%s) panicked: %v", job.ID, job.Kind, panicVal))
	}
	return nil
}

// ClientOption configures NewClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	maxWorkers int
	onError    func(error)
}

// WithMaxWorkers sets the number of concurrent envelope workers. Defaults
// to 10, matching river's own default queue concurrency.
func WithMaxWorkers(n int) ClientOption {
	return func(c *clientConfig) { c.maxWorkers = n }
}

// WithErrorHandler registers a callback invoked on job error or panic.
func WithErrorHandler(fn func(error)) ClientOption {
	return func(c *clientConfig) { c.onError = fn }
}

// NewClient builds and returns a river.Client[pgx.Tx] wired to deliver
// every envelope job to sink. The returned client still needs Start
// called on it before it will process jobs; conduit callers typically do
// this alongside their own process lifecycle.
func NewClient(pool *pgxpool.Pool, sink Sink, opts ...ClientOption) (*river.Client[pgx.Tx], error) {
	cfg := clientConfig{maxWorkers: 10}
	for _, opt := range opts {
		opt(&cfg)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &envelopeWorker{sink: sink})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.maxWorkers},
		},
		Workers:      workers,
		ErrorHandler: &errorLogger{onError: cfg.onError},
	})
	if err != nil {
		return nil, fmt.Errorf("river: new client: %w", err)
	}
	return client, nil
}

// Dispatcher enqueues envelopes as River jobs.
type Dispatcher struct {
	client *river.Client[pgx.Tx]
}

// New returns a Dispatcher backed by client. Use NewClient to build one
// wired to a Sink, or pass a client built and started independently.
func New(client *river.Client[pgx.Tx]) *Dispatcher {
	return &Dispatcher{client: client}
}

// Dispatch enqueues payload as one EnvelopeArgs job. WithDelay maps to
// River's ScheduledAt.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, opts ...dispatcher.DispatchOption) error {
	var o dispatcher.DispatchOptions
	for _, opt := range opts {
		opt(&o)
	}

	insertOpts := &river.InsertOpts{}
	if o.DelayMS > 0 {
		insertOpts.ScheduledAt = time.Now().Add(time.Duration(o.DelayMS) * time.Millisecond)
	}
	if queue, ok := o.Metadata["queue"]; ok {
		insertOpts.Queue = queue
	}

	if _, err := d.client.Insert(ctx, EnvelopeArgs{Payload: payload}, insertOpts); err != nil {
		return &dispatcher.Error{Err: err}
	}
	return nil
}
