// Package transport defines the Transport contract the reporter and
// the inbound config listener depend on, binding spec §6's "outbound
// RPC" interface without committing the core to any particular wire
// implementation (spec.md explicitly keeps "the outbound RPC
// transport" itself out of the core's scope).
package transport

import (
	"context"

	"github.com/hostwatch/agent/internal/transport/wire"
)

// Transport is a single bidirectional channel to the remote
// collector: outbound update messages, inbound config messages, each
// acknowledged.
type Transport interface {
	// Send delivers one UpdateMessage. A non-nil error means the
	// reporter must not commit its pending tracker state (spec §7
	// taxonomy item 2: "retried by not committing old_state").
	Send(ctx context.Context, msg *wire.UpdateMessage) error

	// Recv blocks until the collector pushes a new ConfigMessage, or
	// ctx is done. Implementations return a non-nil error on stream
	// teardown so the caller can trigger reconnect back-off.
	Recv(ctx context.Context) (*wire.ConfigMessage, error)

	// Ack sends a runtime_filters_ack for the most recently received
	// config message. configErr, if non-nil, is relayed as the ack's
	// error field per spec §7 taxonomy item 4.
	Ack(ctx context.Context, configErr error) error

	// Ready reports whether the channel is currently connected and
	// able to carry Send/Recv calls.
	Ready() bool
}
