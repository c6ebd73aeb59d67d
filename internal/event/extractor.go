package event

import "github.com/hostwatch/agent/internal/model"

// Extractor presents the small set of derived checks the signal
// handlers actually need, layered over the raw RawEvent accessors so
// that handlers never repeat the same "is this event usable" logic.
type Extractor struct{}

// Succeeded reports whether the syscall this event records returned
// successfully (spec §4.3, step 1).
func (Extractor) Succeeded(e RawEvent) bool {
	return e.Res() >= 0
}

// Role resolves the event's fd_info role, defaulting to FDRoleNone
// when the event carries no fd_info at all.
func (Extractor) Role(e RawEvent) FDRole {
	fd, ok := e.FDInfo()
	if !ok {
		return FDRoleNone
	}
	return fd.Role
}

// Originator builds the ProcessInfo that attributes a listening
// socket to the process that owns it (spec.md §4.5's "originator
// process attribution"). Args and ContainerStartTime are left at
// their zero value: both come from container metadata lookup, which
// is out of scope for this pipeline (spec.md §1).
func (Extractor) Originator(e RawEvent) model.ProcessInfo {
	return model.ProcessInfo{
		Name:    e.Comm(),
		ExePath: e.Exe(),
		PID:     e.PID(),
		UID:     e.UID(),
		GID:     e.GID(),
	}
}
