// Package ringbuf adapts a cilium/ebpf ring buffer into the core's
// opaque event.RawEvent stream (spec §6's "inbound event stream").
// This package only reads an already-opened map; loading the BPF
// program and opening the map is the driver's job and stays out of
// scope (spec.md §1).
package ringbuf

import "github.com/hostwatch/agent/internal/event"

// decodedEvent is the concrete event.RawEvent backing every record
// this package produces, whether read from a live ring buffer or from
// the in-memory Fixture used in tests.
type decodedEvent struct {
	typ         event.Type
	res         int64
	tsMicros    uint64
	containerID string
	comm        string
	exe         string
	pid         uint32
	uid         uint32
	gid         uint32
	fd          event.FDInfo
	hasFD       bool
}

func (e *decodedEvent) EventType() event.Type { return e.typ }
func (e *decodedEvent) Res() int64             { return e.res }
func (e *decodedEvent) TSMicros() uint64       { return e.tsMicros }
func (e *decodedEvent) ContainerID() string    { return e.containerID }
func (e *decodedEvent) Comm() string           { return e.comm }
func (e *decodedEvent) Exe() string            { return e.exe }
func (e *decodedEvent) PID() uint32            { return e.pid }
func (e *decodedEvent) UID() uint32            { return e.uid }
func (e *decodedEvent) GID() uint32            { return e.gid }

func (e *decodedEvent) FDInfo() (event.FDInfo, bool) {
	return e.fd, e.hasFD
}
