package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/conduitrun/conduit/dispatcher"
)

var _ dispatcher.Dispatcher = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCodecName selects the wire codec used for outgoing frames (this must
// match whatever Mount was configured with on the other end).
func WithCodecName(name string) Option {
	return func(d *Dispatcher) { d.codec = GetCodec(name) }
}

// WithLogger sets the logger used for read-loop diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithRequestTimeout bounds how long Dispatch waits for an ack once a
// Dispatch call's own context has no deadline. Defaults to 30s.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.requestTimeout = timeout }
}

// Dispatcher keeps one persistent WebSocket connection open to a Mount
// endpoint and pushes each dispatched envelope down it as a Frame,
// grounded on client/client.go's Dial/connect/readLoop/request pattern —
// trimmed to the single "send an envelope, wait for its ack" exchange
// conduit's dispatch contract needs, with no auth handshake and no
// method-routed request surface.
type Dispatcher struct {
	url            string
	codec          Codec
	logger         *slog.Logger
	requestTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	closed atomic.Bool

	pending sync.Map // frame ID -> chan *Frame
}

// Dial opens a WebSocket connection to url and returns a Dispatcher backed
// by it. Call Close when done.
func Dial(ctx context.Context, url string, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		url:            url,
		codec:          &JSONCodec{},
		logger:         slog.Default(),
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, &dispatcher.Error{Err: fmt.Errorf("ws: dial: %w", err)}
	}
	d.conn = conn

	go d.readLoop()
	return d, nil
}

// Dispatch encodes payload as a Frame and sends it over the open
// connection, waiting for the correlated ack (or error) frame. DelayMS has
// no meaning for a persistent duplex connection: the receiving Mount runs
// the envelope as soon as it arrives, so a delayed dispatch is rejected
// rather than silently ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, opts ...dispatcher.DispatchOption) error {
	var o dispatcher.DispatchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.DelayMS > 0 {
		return &dispatcher.Error{Err: fmt.Errorf("ws: delayed dispatch is not supported")}
	}

	frame := &Frame{
		ID:        generateFrameID(),
		Type:      FrameEnvelope,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	respCh := make(chan *Frame, 1)
	d.pending.Store(frame.ID, respCh)
	defer d.pending.Delete(frame.ID)

	if err := d.writeFrame(frame); err != nil {
		return &dispatcher.Error{Err: err}
	}

	waitCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}

	select {
	case resp := <-respCh:
		if resp.Type == FrameErr {
			msg := resp.Error
			if msg == "" {
				msg = "unknown error"
			}
			return &dispatcher.Error{Err: fmt.Errorf("ws: remote processing failed: %s", msg)}
		}
		return nil
	case <-waitCtx.Done():
		return &dispatcher.Error{Err: waitCtx.Err()}
	}
}

func (d *Dispatcher) writeFrame(frame *Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("ws: encode frame: %w", err)
	}
	if d.codec.Name() == CodecNameJSON {
		return wsutil.WriteClientText(d.conn, data)
	}
	return wsutil.WriteClientBinary(d.conn, data)
}

// readLoop reads frames off the connection and routes acks/errors to the
// Dispatch call waiting on them, mirroring client.go's own readLoop
// trimmed to the one frame kind this transport carries back.
func (d *Dispatcher) readLoop() {
	for {
		if d.closed.Load() {
			return
		}

		msgs, err := wsutil.ReadServerMessage(d.conn, nil)
		if err != nil {
			if d.closed.Load() {
				return
			}
			d.logger.Warn("dispatcher/ws: read error", slog.String("error", err.Error()))
			return
		}
		if len(msgs) == 0 {
			continue
		}

		frame, decErr := d.codec.Decode(msgs[0].Payload)
		if decErr != nil {
			d.logger.Warn("dispatcher/ws: invalid frame", slog.String("error", decErr.Error()))
			continue
		}

		switch frame.Type {
		case FrameAck, FrameErr:
			if val, ok := d.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *Frame) //nolint:errcheck // pending map always stores chan *Frame
				select {
				case ch <- frame:
				default:
				}
			}
		case FramePong:
			// nothing to do
		}
	}
}

// Close closes the underlying connection.
func (d *Dispatcher) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.conn.Close()
}
