package connection

import "github.com/hostwatch/agent/internal/model"

// Tracker owns a Table plus the committed old_state snapshot the
// reporter diffs against (spec §4.4.2, §4.4.3). ComputeDiff and
// Commit are called only from the reporter's tick goroutine, so
// old_state itself needs no lock; Update is called concurrently from
// the ingestion path and only ever touches the Table, which has its
// own.
type Tracker struct {
	table *Table

	// oldState is the last committed reported image: for every
	// connection the collector currently believes is active, Active is
	// true; entries the collector has already been told are inactive
	// are removed from this map entirely once reaped (see ComputeDiff).
	oldState map[model.Connection]bool

	// pending holds the result of the most recent ComputeDiff call,
	// applied by Commit only after the reporter confirms delivery.
	pending        map[model.Connection]bool
	pendingReap    []model.Connection
	hasPending     bool
}

// New creates a Tracker over a freshly constructed Table.
func New(hardCap int, onEvict EvictionCounter) *Tracker {
	return &Tracker{
		table:    NewTable(hardCap, onEvict),
		oldState: make(map[model.Connection]bool),
	}
}

// Update applies one add/remove delta to the live table (spec §4.4.1).
func (tr *Tracker) Update(conn model.Connection, tsMicros uint64, isAdd bool) {
	tr.table.Update(conn, tsMicros, isAdd)
}

// Len reports the number of live entries in the table.
func (tr *Tracker) Len() int {
	return tr.table.Len()
}

// effectiveActive applies the afterglow rule (spec §4.4.2): an entry
// whose last close is within the window W still reads as active.
func effectiveActive(s model.ConnStatus, now uint64, afterglowEnabled bool, windowMicros uint64) bool {
	if s.IsActive {
		return true
	}
	if !afterglowEnabled || windowMicros == 0 {
		return false
	}
	if now <= s.LastActiveMicros {
		// Clock skew between producer and consumer clocks; treat as
		// still within the window rather than underflow.
		return true
	}
	return now-s.LastActiveMicros < windowMicros
}

// ComputeDiff implements spec §4.4.3: it snapshots the table under
// the lock, computes added/removed/still_open against the last
// committed old_state, and stages (but does not apply) the next
// old_state and the set of entries eligible for reaping. Nothing here
// mutates the live table or old_state — that only happens in Commit,
// after the reporter confirms the resulting message was delivered or
// finds it has nothing to send.
func (tr *Tracker) ComputeDiff(now uint64, afterglowEnabled bool, afterglowWindowMicros uint64) Diff {
	snap := tr.table.Snapshot()

	var diff Diff
	nextOld := make(map[model.Connection]bool, len(snap))
	var reap []model.Connection

	for conn, status := range snap {
		effective := effectiveActive(status, now, afterglowEnabled, afterglowWindowMicros)
		was, hadOld := tr.oldState[conn]

		switch {
		case !hadOld && effective:
			diff.Added = append(diff.Added, Delta{conn, true})
		case !hadOld && !effective:
			// Accept and close both happened before old_state ever saw
			// this connection: its whole lifecycle fit inside one tick.
			// Report both edges now instead of silently dropping them
			// into default/StillOpen, which never transmits (spec §8
			// scenarios 1 and 3).
			diff.Added = append(diff.Added, Delta{conn, true})
			diff.Removed = append(diff.Removed, Delta{conn, false})
		case hadOld && was != effective:
			if effective {
				diff.Added = append(diff.Added, Delta{conn, true})
			} else {
				diff.Removed = append(diff.Removed, Delta{conn, false})
			}
		default:
			diff.StillOpen = append(diff.StillOpen, Delta{conn, effective})
		}

		switch {
		case !hadOld && !effective:
			// Just reported as an added+removed pair above; old_state
			// never needs to remember this connection, so it reaps the
			// instant this diff commits rather than waiting a tick.
			reap = append(reap, conn)
			continue
		case !status.IsActive && hadOld && !was:
			// An entry reaps once old_state already reflects it as
			// inactive — i.e. the tick after the one that reported it
			// removed, never the same tick (old_state hasn't committed
			// this tick's removal yet). Reaped entries are simply left
			// out of nextOld, which is itself the next committed
			// old_state; there is nothing further to "clean up" there.
			if !afterglowEnabled || afterglowWindowMicros == 0 || now-status.LastActiveMicros >= afterglowWindowMicros {
				reap = append(reap, conn)
				continue
			}
		}

		nextOld[conn] = effective
	}

	// Entries old_state still remembers as active but that vanished
	// from the table entirely (evicted under resource exhaustion, or
	// any path that bypassed a close event) still owe the collector a
	// removed, per spec §4.4.3 step 2's closing clause.
	for conn, was := range tr.oldState {
		if _, present := snap[conn]; present {
			continue
		}
		if was {
			diff.Removed = append(diff.Removed, Delta{conn, false})
		}
	}

	tr.pending = nextOld
	tr.pendingReap = reap
	tr.hasPending = true
	return diff
}

// Commit applies the most recently computed diff's old_state and reap
// set. Called by the reporter once it has confirmed the message
// carrying that diff was successfully delivered (spec §4.6 step 4),
// or when that message carries no added or removed entries.
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

// Discard drops the most recently computed diff without applying it,
// for when delivery failed: old_state and the table are left exactly
// as they were, so the next tick recomputes the same deltas (spec
// §4.6's at-least-once, at-most-twice-on-failure semantics).
func (tr *Tracker) Discard() {
	tr.pending = nil
	tr.pendingReap = nil
	tr.hasPending = false
}
