// Package grpcstream implements the Transport interface over a
// single bidirectional gRPC streaming RPC, mirroring the duplex
// client / SessionLoop / reconnect shape of the runtime-control
// Service this pipeline's outbound channel is modeled on. It frames
// messages with a small custom codec instead of protoc-generated
// bindings, since no .proto compilation step exists in this repo.
package grpcstream

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hostwatch/agent/internal/transport/wire"
)

// Name is the content-subtype registered with grpc/encoding; callers
// select it via grpc.CallContentSubtype or grpc.ForceCodec.
const Name = "hostwatch-gob"

const (
	tagUpdate byte = 1
	tagConfig byte = 2
	tagAck    byte = 3
)

// ackPayload is the runtime_filters_ack spec §6 describes, with an
// optional error string for taxonomy item 4 ("ack includes an
// error").
type ackPayload struct {
	ConfigError string
}

// updateEnvelope is UpdateMessage's wire shape: everything gob-encoded
// except the timestamp, which travels as a canonically-marshaled
// timestamppb.Timestamp so that field at least round-trips through a
// real protobuf encoder rather than gob's own time.Time support.
type updateEnvelope struct {
	HostID             string
	TimestampPB        []byte
	AddedConnections   []wire.ConnectionRecord
	RemovedConnections []wire.ConnectionRecord
	AddedEndpoints     []wire.EndpointRecord
	RemovedEndpoints   []wire.EndpointRecord
}

type codec struct{}

func init() {
	encoding.RegisterCodec(codec{})
}

func (codec) Name() string { return Name }

func (codec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	switch msg := v.(type) {
	case *wire.UpdateMessage:
		buf.WriteByte(tagUpdate)
		tsBytes, err := proto.Marshal(timestamppb.New(msg.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("grpcstream: marshal timestamp: %w", err)
		}
		env := updateEnvelope{
			HostID:             msg.HostID,
			TimestampPB:        tsBytes,
			AddedConnections:   msg.AddedConnections,
			RemovedConnections: msg.RemovedConnections,
			AddedEndpoints:     msg.AddedEndpoints,
			RemovedEndpoints:   msg.RemovedEndpoints,
		}
		if err := gob.NewEncoder(&buf).Encode(env); err != nil {
			return nil, fmt.Errorf("grpcstream: encode update: %w", err)
		}
	case *wire.ConfigMessage:
		buf.WriteByte(tagConfig)
		if err := gob.NewEncoder(&buf).Encode(msg.RuntimeFilteringConfiguration); err != nil {
			return nil, fmt.Errorf("grpcstream: encode config: %w", err)
		}
	case *ackPayload:
		buf.WriteByte(tagAck)
		if err := gob.NewEncoder(&buf).Encode(*msg); err != nil {
			return nil, fmt.Errorf("grpcstream: encode ack: %w", err)
		}
	default:
		return nil, fmt.Errorf("grpcstream: unsupported message type %T", v)
	}
	return buf.Bytes(), nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("grpcstream: empty message")
	}
	tag, body := data[0], data[1:]
	dec := gob.NewDecoder(bytes.NewReader(body))

	switch tag {
	case tagUpdate:
		msg, ok := v.(*wire.UpdateMessage)
		if !ok {
			return fmt.Errorf("grpcstream: update tag decoded into %T", v)
		}
		var env updateEnvelope
		if err := dec.Decode(&env); err != nil {
			return fmt.Errorf("grpcstream: decode update: %w", err)
		}
		var ts timestamppb.Timestamp
		if err := proto.Unmarshal(env.TimestampPB, &ts); err != nil {
			return fmt.Errorf("grpcstream: unmarshal timestamp: %w", err)
		}
		msg.HostID = env.HostID
		msg.Timestamp = ts.AsTime()
		msg.AddedConnections = env.AddedConnections
		msg.RemovedConnections = env.RemovedConnections
		msg.AddedEndpoints = env.AddedEndpoints
		msg.RemovedEndpoints = env.RemovedEndpoints
		return nil
	case tagConfig:
		msg, ok := v.(*wire.ConfigMessage)
		if !ok {
			return fmt.Errorf("grpcstream: config tag decoded into %T", v)
		}
		return dec.Decode(&msg.RuntimeFilteringConfiguration)
	case tagAck:
		msg, ok := v.(*ackPayload)
		if !ok {
			return fmt.Errorf("grpcstream: ack tag decoded into %T", v)
		}
		return dec.Decode(msg)
	default:
		return fmt.Errorf("grpcstream: unknown frame tag %d", tag)
	}
}
