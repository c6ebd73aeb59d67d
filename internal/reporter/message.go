package reporter

import (
	"time"

	"github.com/hostwatch/agent/internal/transport/wire"
	"github.com/hostwatch/agent/internal/tracker/connection"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

// assembleMessage implements spec §4.6 step 2: ordered
// {added, removed} sections; still_open is never transmitted.
func assembleMessage(hostID string, ts time.Time, connDiff connection.Diff, endpDiff endpoint.Diff) *wire.UpdateMessage {
	msg := &wire.UpdateMessage{
		HostID:    hostID,
		Timestamp: ts,
	}

	for _, d := range connDiff.Added {
		msg.AddedConnections = append(msg.AddedConnections, wire.ConnectionRecord{Conn: d.Conn, IsActive: true})
	}
	for _, d := range connDiff.Removed {
		msg.RemovedConnections = append(msg.RemovedConnections, wire.ConnectionRecord{Conn: d.Conn, IsActive: false})
	}

	for _, d := range endpDiff.Added {
		msg.AddedEndpoints = append(msg.AddedEndpoints, wire.EndpointRecord{Key: d.Key, Originator: d.Originator, IsActive: true})
	}
	for _, d := range endpDiff.Removed {
		msg.RemovedEndpoints = append(msg.RemovedEndpoints, wire.EndpointRecord{Key: d.Key, Originator: d.Originator, IsActive: false})
	}

	return msg
}
