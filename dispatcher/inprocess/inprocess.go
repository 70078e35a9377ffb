// Package inprocess is a dispatcher.Dispatcher that delivers payloads to
// a local sink through a buffered channel worked by a small pool of
// goroutines, grounded on the teacher's worker.Pool start/stop/dequeue-loop
// shape (worker/pool.go) but polling an in-memory channel instead of a
// job.Store. It never leaves the process, so it is meant for tests, single-
// process deployments, and the RunUntilError mode's own dogfood tests —
// production isolated-mode deployments should use a real transport.
package inprocess

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/conduitrun/conduit/dispatcher"
)

var _ dispatcher.Dispatcher = (*Dispatcher)(nil)

// ErrClosed is returned by Dispatch once the Dispatcher has been stopped.
var ErrClosed = errors.New("inprocess: dispatcher closed")

// Sink receives a raw envelope payload; conduit wires this to
// mount.Mount.Process.
type Sink func(ctx context.Context, payload []byte) error

type delivery struct {
	ctx     context.Context
	payload []byte
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency sets the number of goroutines draining the delivery
// queue. Defaults to 4.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithQueueSize sets the buffered channel capacity. Defaults to 256.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queueSize = n }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher is an in-memory, in-process dispatcher.Dispatcher.
type Dispatcher struct {
	sink        Sink
	concurrency int
	queueSize   int
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	queue   chan delivery
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a Dispatcher delivering to sink once Start is called.
func New(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:        sink,
		concurrency: 4,
		queueSize:   256,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutines. It returns immediately.
func (d *Dispatcher) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.queue = make(chan delivery, d.queueSize)
	d.stopCh = make(chan struct{})

	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.drainLoop()
	}
	return nil
}

// Stop signals every worker to stop after draining what is already
// queued, and waits for them to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drainLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			for {
				select {
				case item := <-d.queue:
					if err := d.sink(item.ctx, item.payload); err != nil {
						d.logger.Error("inprocess: sink failed", "error", err)
					}
				default:
					return
				}
			}
		case item := <-d.queue:
			if err := d.sink(item.ctx, item.payload); err != nil {
				d.logger.Error("inprocess: sink failed", "error", err)
			}
		}
	}
}

// Dispatch enqueues payload for local delivery. If opts requests a delay,
// the enqueue itself is deferred by that long in a separate goroutine;
// Dispatch still returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, opts ...dispatcher.DispatchOption) error {
	d.mu.Lock()
	running, queue := d.running, d.queue
	d.mu.Unlock()
	if !running {
		return &dispatcher.Error{Err: ErrClosed}
	}

	var o dispatcher.DispatchOptions
	for _, opt := range opts {
		opt(&o)
	}

	item := delivery{ctx: ctx, payload: payload}
	if o.DelayMS <= 0 {
		select {
		case queue <- item:
			return nil
		case <-ctx.Done():
			return &dispatcher.Error{Err: ctx.Err()}
		}
	}

	go func() {
		select {
		case <-time.After(time.Duration(o.DelayMS) * time.Millisecond):
		case <-d.stopCh:
			return
		}
		select {
		case queue <- item:
		case <-d.stopCh:
		}
	}()
	return nil
}
