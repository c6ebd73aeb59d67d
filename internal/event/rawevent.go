package event

import "github.com/hostwatch/agent/internal/model"

// FDRole is the socket role carried in an event's fd_info: which side
// of the connection the local process is on, if any.
type FDRole uint8

const (
	FDRoleNone FDRole = iota
	FDRoleClient
	FDRoleServer
)

// FDInfo is the subset of kernel fd_info the network signal handler
// needs. Local/Remote are already split out by role; the extractor
// (not the handler) is responsible for knowing, per socket family,
// which raw field is which.
type FDInfo struct {
	Role   FDRole
	Proto  model.L4Proto
	Local  model.Endpoint
	Remote model.Endpoint
}

// RawEvent is the opaque handle for one driver-reported syscall event.
// Implementations are supplied by an ingestion adapter (e.g.
// internal/ingest/ringbuf); the core never interprets the underlying
// bytes, only these accessors. None of them may allocate on the hot
// path, and any string or FDInfo result is only valid until the next
// call that reuses the same handle.
type RawEvent interface {
	// EventType returns the dense ordinal this event was decoded as.
	EventType() Type

	// Res returns the syscall's raw return code.
	Res() int64

	// TSMicros returns the kernel timestamp, microseconds since boot.
	TSMicros() uint64

	// ContainerID returns the originating container id, or "" for a
	// process running directly on the host.
	ContainerID() string

	// Comm returns the process command name, or "" if this event type
	// carries none.
	Comm() string

	// Exe returns the process executable path, or "" if absent.
	Exe() string

	// PID, UID and GID identify the process that owns this event's fd,
	// for attributing listening endpoints to an originator (spec.md
	// §3's ProcessInfo). Zero when the event carries no process
	// context at all.
	PID() uint32
	UID() uint32
	GID() uint32

	// FDInfo returns the event's socket descriptor info and true, or
	// ok=false if this event type carries no fd_info at all.
	FDInfo() (FDInfo, bool)
}
