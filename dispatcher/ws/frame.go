// Package ws is a duplex, long-lived-connection transport: an outbound
// dispatcher.Dispatcher that keeps one WebSocket open to a worker and pushes
// envelopes down it, and Mount, which accepts that connection and drives
// each envelope it receives through a mount.Mount. It generalizes the
// teacher's reason for building a whole wire protocol (dwp) down to the one
// thing conduit's dispatch contract actually needs over a socket: push an
// envelope, get an acknowledgement back.
//
// The frame shape and JSON/msgpack codec pair are grounded on
// github.com/xraph/dispatch's dwp package, trimmed to the envelope exchange
// (there is no auth handshake, no request routing by method, no
// subscription or federation machinery — conduit's dispatch contract has
// none of those concerns) and no request/response method dispatch: apart
// from the ping/pong keep-alive pair, every frame either carries an
// envelope or acknowledges/rejects one.
package ws

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// FrameType identifies the kind of message carried by a Frame.
type FrameType string

const (
	// FrameEnvelope carries one execution envelope from dispatcher to Mount.
	FrameEnvelope FrameType = "envelope"
	// FrameAck confirms an envelope was processed to completion or suspension.
	FrameAck FrameType = "ack"
	// FrameErr reports that processing an envelope failed.
	FrameErr FrameType = "error"
	// FramePing/FramePong keep an idle connection alive.
	FramePing FrameType = "ping"
	FramePong FrameType = "pong"
)

// Frame is the wire message exchanged over a conduit WebSocket connection.
type Frame struct {
	ID        string          `json:"id" msgpack:"id"`
	Type      FrameType       `json:"type" msgpack:"type"`
	CorrelID  string          `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Error     string          `json:"error,omitempty" msgpack:"error,omitempty"`
	Timestamp time.Time       `json:"ts" msgpack:"ts"`
}

// Codec defines the wire serialization for Frame values.
type Codec interface {
	Encode(frame *Frame) ([]byte, error)
	Decode(data []byte) (*Frame, error)
	Name() string
}

const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns the named codec, defaulting to JSON for an unknown or
// empty name.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	default:
		return &JSONCodec{}
	}
}

// JSONCodec encodes/decodes frames as JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(frame *Frame) ([]byte, error) { return json.Marshal(frame) }

func (JSONCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes/decodes frames as MessagePack, for deployments that
// want a leaner wire format on a high-throughput worker connection.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(frame *Frame) ([]byte, error) { return msgpack.Marshal(frame) }

func (MsgpackCodec) Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }

// generateFrameID returns a unique frame ID, mirroring dwp's own
// timestamp-based generator: uniqueness only needs to hold for the
// lifetime of one connection's pending-request table.
func generateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
