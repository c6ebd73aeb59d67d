package endpoint

import "github.com/hostwatch/agent/internal/model"

// Delta is one listening endpoint's reported status for a tick.
type Delta struct {
	Key        model.EndpointKey
	Originator model.ProcessInfo
	Active     bool
}

// Diff is the per-tick output of ComputeDiff, mirroring
// connection.Diff (spec §4.5: "diff and reporting follow the same
// contract as §4.4.3").
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
