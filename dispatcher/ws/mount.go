package ws

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/conduitrun/conduit/mount"
)

// MountOption configures Mount.
type MountOption func(*mountConfig)

type mountConfig struct {
	path  string
	codec string
}

// WithPath overrides the WebSocket path (default "/ws").
func WithPath(path string) MountOption {
	return func(c *mountConfig) { c.path = path }
}

// WithCodec selects the frame codec advertised by the accepted connection
// (CodecNameJSON or CodecNameMsgpack). Defaults to JSON.
func WithCodec(name string) MountOption {
	return func(c *mountConfig) { c.codec = name }
}

// Mount returns an http.Handler exposing a persistent WebSocket endpoint,
// grounded on dwp/server.go's handleWebSocket: each connected Dispatcher
// (see Dial) keeps its socket open and sends one Frame per dispatched
// envelope, and Mount replies with an ack or error frame once
// mount.Mount.Process returns.
//
// Unlike dwp's handler there is no auth frame, no method routing, and no
// subscription bookkeeping — envelope frames in, ack/error frames out, plus
// ping/pong keep-alives, is everything that crosses the wire.
func Mount(m *mount.Mount, opts ...MountOption) http.Handler {
	cfg := mountConfig{path: "/ws", codec: CodecNameJSON}
	for _, opt := range opts {
		opt(&cfg)
	}
	codec := GetCodec(cfg.codec)

	router := forge.NewRouter()
	if err := router.WebSocket(cfg.path, func(ctx forge.Context, conn forge.Connection) error {
		return handleConnection(ctx, conn, codec, m)
	}); err != nil {
		panic("dispatcher/ws: register WebSocket route: " + err.Error())
	}
	return router.Handler()
}

func handleConnection(ctx forge.Context, conn forge.Connection, codec Codec, m *mount.Mount) error {
	for {
		data, err := conn.Read()
		if err != nil {
			return nil // connection closed
		}

		frame, decErr := codec.Decode(data)
		if decErr != nil {
			_ = writeFrame(conn, codec, &Frame{
				ID:        generateFrameID(),
				Type:      FrameErr,
				Error:     "invalid frame: " + decErr.Error(),
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		switch frame.Type {
		case FramePing:
			_ = writeFrame(conn, codec, &Frame{
				ID:        generateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: time.Now().UTC(),
			})
			continue
		case FrameEnvelope:
			// handled below
		default:
			_ = writeFrame(conn, codec, &Frame{
				ID:        generateFrameID(),
				Type:      FrameErr,
				CorrelID:  frame.ID,
				Error:     "unexpected frame type: " + string(frame.Type),
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		reply := &Frame{ID: generateFrameID(), CorrelID: frame.ID, Timestamp: time.Now().UTC()}
		if procErr := m.Process(ctx.Context(), frame.Payload); procErr != nil {
			reply.Type = FrameErr
			reply.Error = procErr.Error()
		} else {
			reply.Type = FrameAck
		}
		if writeErr := writeFrame(conn, codec, reply); writeErr != nil {
			return writeErr
		}
	}
}

// writeFrame encodes and writes a frame to a Forge connection, matching
// dwp's own writeFrame: JSON frames go through WriteJSON, everything else
// through the codec's own encoder and a raw Write.
func writeFrame(conn forge.Connection, codec Codec, frame *Frame) error {
	if codec.Name() == CodecNameJSON {
		return conn.WriteJSON(frame)
	}
	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}
	return conn.Write(data)
}
