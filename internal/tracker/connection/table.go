// Package connection implements the connection tracker: the stateful
// map of live network tuples, its afterglow suppression window, and
// the per-tick diff the reporter consumes (spec §4.4, the hardest
// subsystem in this pipeline).
package connection

import (
	"sync"

	"github.com/hostwatch/agent/internal/model"
)

// DefaultHardCap is the default maximum number of live entries a table
// holds before it starts evicting (spec §7.3).
const DefaultHardCap = 65536

// EvictionCounter receives a count every time the table evicts entries
// to stay under its hard cap, so the caller can turn it into a metric
// (spec §7.3: "emits a warning metric").
type EvictionCounter func(reason string, n int)

// Table is the live ConnectionTable: a map from Connection to
// ConnStatus guarded by a single coarse mutex, exactly as spec §4.4.1
// prescribes ("a single coarse mutex; the tracker is write-heavy but
// operations are O(1)"). No I/O happens while the lock is held.
type Table struct {
	mu       sync.Mutex
	entries  map[model.Connection]model.ConnStatus
	hardCap  int
	onEvict  EvictionCounter
}

// NewTable creates an empty table with the given hard cap (<=0 uses
// DefaultHardCap).
func NewTable(hardCap int, onEvict EvictionCounter) *Table {
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	if onEvict == nil {
		onEvict = func(string, int) {}
	}
	return &Table{
		entries: make(map[model.Connection]model.ConnStatus),
		hardCap: hardCap,
		onEvict: onEvict,
	}
}

// Update applies one add/remove delta (spec §4.4.1). Events from
// different per-CPU ringbuffers can arrive out of order, so the newest
// event by timestamp wins, not the last one processed: an event older
// than the entry's current LastActiveMicros leaves both IsActive and
// LastActiveMicros untouched.
func (t *Table) Update(conn model.Connection, tsMicros uint64, isAdd bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.entries[conn]
	if !ok {
		t.entries[conn] = model.ConnStatus{LastActiveMicros: tsMicros, IsActive: isAdd}
		t.evictIfOverCapLocked()
		return
	}

	if tsMicros >= cur.LastActiveMicros {
		cur.LastActiveMicros = tsMicros
		cur.IsActive = isAdd
	}
	t.entries[conn] = cur
}

// Snapshot copies the table under the lock and releases it
// immediately, per spec §4.4.3 step 1. The copy is safe to read and
// iterate without further synchronization.
func (t *Table) Snapshot() map[model.Connection]model.ConnStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[model.Connection]model.ConnStatus, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Delete removes the given connections from the live table (spec
// §4.4.3 step 4, the reap step). Tracker.Commit calls it with the
// staged reap set.
func (t *Table) Delete(conns []model.Connection) {
	if len(conns) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range conns {
		delete(t.entries, c)
	}
}

// Len reports the current number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// evictIfOverCapLocked implements spec §7.3: oldest-inactive entries
// are evicted first; if still over cap, oldest-active are evicted too,
// and counted either way. Callers must hold t.mu.
func (t *Table) evictIfOverCapLocked() {
	over := len(t.entries) - t.hardCap
	if over <= 0 {
		return
	}

	inactiveEvicted := t.evictOldestLocked(over, false)
	remaining := over - inactiveEvicted
	if inactiveEvicted > 0 {
		t.onEvict("oldest-inactive", inactiveEvicted)
	}
	if remaining <= 0 {
		return
	}
	activeEvicted := t.evictOldestLocked(remaining, true)
	if activeEvicted > 0 {
		t.onEvict("oldest-active", activeEvicted)
	}
}

// evictOldestLocked evicts up to n entries matching wantActive,
// oldest LastActiveMicros first. Callers must hold t.mu.
func (t *Table) evictOldestLocked(n int, wantActive bool) int {
	if n <= 0 {
		return 0
	}
	type candidate struct {
		conn model.Connection
		ts   uint64
	}
	var candidates []candidate
	for conn, status := range t.entries {
		if status.IsActive != wantActive {
			continue
		}
		candidates = append(candidates, candidate{conn, status.LastActiveMicros})
	}
	if len(candidates) == 0 {
		return 0
	}
	// Partial selection sort for the n oldest; n is small relative to
	// the table in the steady state (eviction is the exception path).
	if n > len(candidates) {
		n = len(candidates)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].ts < candidates[minIdx].ts {
				minIdx = j
			}
		}
		candidates[i], candidates[minIdx] = candidates[minIdx], candidates[i]
		delete(t.entries, candidates[i].conn)
	}
	return n
}
