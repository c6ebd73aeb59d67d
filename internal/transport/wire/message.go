// Package wire defines the messages carried over the outbound RPC
// channel (spec §6): added/removed connections and endpoints on the
// way out, runtime filtering configuration on the way in. These are
// plain Go structs, not protoc-generated bindings — see
// internal/transport/grpcstream for how they're framed on the wire.
package wire

import (
	"time"

	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/signalhandler/network"
)

// ConnectionRecord is one reported connection delta.
type ConnectionRecord struct {
	Conn     model.Connection
	IsActive bool
}

// EndpointRecord is one reported listening-endpoint delta.
type EndpointRecord struct {
	Key        model.EndpointKey
	Originator model.ProcessInfo
	IsActive   bool
}

// UpdateMessage is the outbound message spec §6 describes: "{added_connections[],
// removed_connections[], added_endpoints[], removed_endpoints[], host_id, timestamp}".
// still_open deltas are not retransmitted — only transitions are sent,
// matching §4.4.3's diff contract. HostID identifies this agent's host
// to the collector.
type UpdateMessage struct {
	HostID    string
	Timestamp time.Time

	AddedConnections   []ConnectionRecord
	RemovedConnections []ConnectionRecord

	AddedEndpoints   []EndpointRecord
	RemovedEndpoints []EndpointRecord
}

// Empty reports whether the message carries no deltas at all, in
// which case the reporter skips the send entirely.
func (m *UpdateMessage) Empty() bool {
	return len(m.AddedConnections) == 0 && len(m.RemovedConnections) == 0 &&
		len(m.AddedEndpoints) == 0 && len(m.RemovedEndpoints) == 0
}

// RuntimeFilterConfig is the inbound runtime_filtering_configuration
// payload (spec §6): the subset of config.Snapshot the collector is
// allowed to push over the wire, as opposed to the options that only
// ever come from the bootstrap YAML file.
type RuntimeFilterConfig struct {
	TurnOffScrape            bool
	ScrapeIntervalSeconds    uint32
	AfterglowPeriodMicros    uint64
	EnableAfterglow          bool
	ProcessesListeningOnPort bool
	Filter                   network.FilterConfig
}

// ConfigMessage is the inbound message spec §6 describes: "{runtime_filtering_configuration}".
type ConfigMessage struct {
	RuntimeFilteringConfiguration RuntimeFilterConfig
}
