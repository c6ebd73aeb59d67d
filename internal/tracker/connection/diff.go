package connection

import "github.com/hostwatch/agent/internal/model"

// Delta is one connection's reported status for a tick, either newly
// (in)active or unchanged since the last successful report.
type Delta struct {
	Conn   model.Connection
	Active bool
}

// Diff is the per-tick output of ComputeDiff: the three disjoint sets
// spec §4.4.3 defines — added, removed, still_open.
type Diff struct {
	Added     []Delta
	Removed   []Delta
	StillOpen []Delta
}

// Empty reports whether the diff carries nothing worth sending: no
// added and no removed entries. StillOpen is never sent, so it is not
// counted.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
