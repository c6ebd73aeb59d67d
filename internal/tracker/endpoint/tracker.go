package endpoint

import "github.com/hostwatch/agent/internal/model"

// oldEntry is the committed old_state record for one endpoint: its
// last reported originator and active flag. Originator is carried so
// a still_open report and an added report both have somewhere to read
// it from without re-touching the table.
type oldEntry struct {
	originator model.ProcessInfo
	active     bool
}

// Tracker is the endpoint analog of connection.Tracker: it owns a
// Table and the committed old_state the reporter diffs against, with
// the same stage-then-commit discipline so a failed delivery never
// loses state (spec §4.5, §4.6 step 4).
type Tracker struct {
	table *Table

	oldState map[model.EndpointKey]oldEntry

	pending     map[model.EndpointKey]oldEntry
	pendingReap []model.EndpointKey
	hasPending  bool
}

// New creates a Tracker over a freshly constructed Table.
func New(hardCap int, onEvict EvictionCounter) *Tracker {
	return &Tracker{
		table:    NewTable(hardCap, onEvict),
		oldState: make(map[model.EndpointKey]oldEntry),
	}
}

// Update applies one syscall-driven listen/close delta.
func (tr *Tracker) Update(key model.EndpointKey, originator model.ProcessInfo, tsMicros uint64, isAdd bool) {
	tr.table.Update(key, originator, tsMicros, isAdd)
}

// ApplyScrape merges one container's process-listening-on-port scrape
// snapshot (spec §4.5's merge rule).
func (tr *Tracker) ApplyScrape(containerID string, scrapeTime uint64, seen map[model.EndpointKey]model.ProcessInfo) {
	tr.table.ApplyScrape(containerID, scrapeTime, seen)
}

// Len reports the number of live entries in the table.
func (tr *Tracker) Len() int {
	return tr.table.Len()
}

func effectiveActive(e Entry, now uint64, afterglowEnabled bool, windowMicros uint64) bool {
	if e.IsActive {
		return true
	}
	if !afterglowEnabled || windowMicros == 0 {
		return false
	}
	if now <= e.LastActiveMicros {
		return true
	}
	return now-e.LastActiveMicros < windowMicros
}

// ComputeDiff mirrors connection.Tracker.ComputeDiff exactly, applied
// to EndpointKey identities with afterglow per endpoint identity
// (spec §4.5's closing sentence).
func (tr *Tracker) ComputeDiff(now uint64, afterglowEnabled bool, afterglowWindowMicros uint64) Diff {
	snap := tr.table.Snapshot()

	var diff Diff
	nextOld := make(map[model.EndpointKey]oldEntry, len(snap))
	var reap []model.EndpointKey

	for key, entry := range snap {
		effective := effectiveActive(entry, now, afterglowEnabled, afterglowWindowMicros)
		was, hadOld := tr.oldState[key]

		switch {
		case !hadOld && effective:
			diff.Added = append(diff.Added, Delta{key, entry.Originator, true})
		case !hadOld && !effective:
			// Listen and close both happened before old_state ever saw
			// this endpoint: its whole lifecycle fit inside one tick.
			// Report both edges now instead of silently dropping them
			// into default/StillOpen, which never transmits (spec §8
			// scenarios 1 and 3).
			diff.Added = append(diff.Added, Delta{key, entry.Originator, true})
			diff.Removed = append(diff.Removed, Delta{key, entry.Originator, false})
		case hadOld && was.active != effective:
			if effective {
				diff.Added = append(diff.Added, Delta{key, entry.Originator, true})
			} else {
				diff.Removed = append(diff.Removed, Delta{key, entry.Originator, false})
			}
		default:
			diff.StillOpen = append(diff.StillOpen, Delta{key, entry.Originator, effective})
		}

		switch {
		case !hadOld && !effective:
			// Just reported as an added+removed pair above; old_state
			// never needs to remember this endpoint, so it reaps the
			// instant this diff commits rather than waiting a tick.
			reap = append(reap, key)
			continue
		case !entry.IsActive && hadOld && !was.active:
			if !afterglowEnabled || afterglowWindowMicros == 0 || now-entry.LastActiveMicros >= afterglowWindowMicros {
				reap = append(reap, key)
				continue
			}
		}

		nextOld[key] = oldEntry{originator: entry.Originator, active: effective}
	}

	for key, was := range tr.oldState {
		if _, present := snap[key]; present {
			continue
		}
		if was.active {
			diff.Removed = append(diff.Removed, Delta{key, was.originator, false})
		}
	}

	tr.pending = nextOld
	tr.pendingReap = reap
	tr.hasPending = true
	return diff
}

// Commit applies the staged old_state and reap set after a confirmed
// delivery, or after a tick with nothing to send.
func (tr *Tracker) Commit() {
	if !tr.hasPending {
		return
	}
	tr.table.Delete(tr.pendingReap)
	tr.oldState = tr.pending
	tr.pending = nil
	tr.pendingReap = nil
	tr.hasPending = false
}

// Discard drops the most recently computed diff without applying it.
func (tr *Tracker) Discard() {
	tr.pending = nil
	tr.pendingReap = nil
	tr.hasPending = false
}
