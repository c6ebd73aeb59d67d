// Package endpoint implements the listening-endpoint tracker: the
// EndpointTable, its scrape-merge rule, and the per-tick diff, mirroring
// internal/tracker/connection's structure (spec §4.5 reuses §4.4.3's
// diff contract wholesale).
package endpoint

import (
	"sync"

	"github.com/hostwatch/agent/internal/model"
)

// Entry is one EndpointTable value: who owns the bound socket, when it
// was last observed, and whether it currently reads as active.
type Entry struct {
	Originator       model.ProcessInfo
	LastActiveMicros uint64
	IsActive         bool
}

// DefaultHardCap mirrors connection.DefaultHardCap; listening sockets
// are far fewer per host than connections, but the same exhaustion
// guard applies (spec §7.3).
const DefaultHardCap = 65536

// EvictionCounter is the endpoint-table analog of
// connection.EvictionCounter.
type EvictionCounter func(reason string, n int)

// Table is the EndpointTable: a map from model.EndpointKey to Entry
// guarded by a single coarse mutex (spec §4.5, §7.2's invariant that
// each tracker owns its own coarse mutex).
type Table struct {
	mu      sync.Mutex
	entries map[model.EndpointKey]Entry
	hardCap int
	onEvict EvictionCounter
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
		entries: make(map[model.EndpointKey]Entry),
		hardCap: hardCap,
		onEvict: onEvict,
	}
}

// Update applies one syscall-driven delta: a listen (isAdd=true) or a
// close (isAdd=false) for the given key, with originator attribution
// from the triggering event. Events can arrive out of order, so the
// newest event by timestamp wins, not the last one processed: an event
// older than the entry's current LastActiveMicros leaves IsActive,
// LastActiveMicros and Originator all untouched.
func (t *Table) Update(key model.EndpointKey, originator model.ProcessInfo, tsMicros uint64, isAdd bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.entries[key]
	if !ok {
		t.entries[key] = Entry{Originator: originator, LastActiveMicros: tsMicros, IsActive: isAdd}
		t.evictIfOverCapLocked()
		return
	}
	if tsMicros >= cur.LastActiveMicros {
		cur.LastActiveMicros = tsMicros
		// A syscall event at least as new as the entry replaces its
		// attribution, whether that came from a scrape or an earlier
		// syscall event (spec §4.5's "more precise" source).
		cur.Originator = originator
		cur.IsActive = isAdd
	}
	t.entries[key] = cur
}

// ApplyScrape merges one container's complete scrape snapshot taken at
// scrapeTime (spec §4.5's merge rule): every key in seen is upserted
// as active with the scraped originator, unless a syscall event has
// already updated that key more recently than scrapeTime (syscall
// wins on conflict); every key for containerID NOT in seen whose
// LastActiveMicros predates scrapeTime is marked inactive. Entries
// belonging to other containers are untouched, since a scrape
// snapshot only ever covers one container per cycle.
func (t *Table) ApplyScrape(containerID string, scrapeTime uint64, seen map[model.EndpointKey]model.ProcessInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, originator := range seen {
		cur, ok := t.entries[key]
		if !ok {
			t.entries[key] = Entry{Originator: originator, LastActiveMicros: scrapeTime, IsActive: true}
			continue
		}
		if cur.LastActiveMicros > scrapeTime {
			// A syscall event observed this key more recently than
			// the scrape: syscall wins, leave the entry untouched.
			continue
		}
		cur.LastActiveMicros = scrapeTime
		cur.Originator = originator
		cur.IsActive = true
		t.entries[key] = cur
	}

	for key, cur := range t.entries {
		if key.ContainerID != containerID {
			continue
		}
		if _, present := seen[key]; present {
			continue
		}
		if cur.LastActiveMicros < scrapeTime {
			cur.IsActive = false
			t.entries[key] = cur
		}
	}
	t.evictIfOverCapLocked()
}

// Snapshot copies the table under the lock, per the same discipline
// as connection.Table.Snapshot.
func (t *Table) Snapshot() map[model.EndpointKey]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[model.EndpointKey]Entry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Delete removes the given keys from the live table (the reap step).
func (t *Table) Delete(keys []model.EndpointKey) {
	if len(keys) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.entries, k)
	}
}

// Len reports the current number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) evictIfOverCapLocked() {
	over := len(t.entries) - t.hardCap
	if over <= 0 {
		return
	}
	inactiveEvicted := t.evictOldestLocked(over, false)
	if inactiveEvicted > 0 {
		t.onEvict("oldest-inactive", inactiveEvicted)
	}
	remaining := over - inactiveEvicted
	if remaining <= 0 {
		return
	}
	activeEvicted := t.evictOldestLocked(remaining, true)
	if activeEvicted > 0 {
		t.onEvict("oldest-active", activeEvicted)
	}
}

func (t *Table) evictOldestLocked(n int, wantActive bool) int {
	if n <= 0 {
		return 0
	}
	type candidate struct {
		key model.EndpointKey
		ts  uint64
	}
	var candidates []candidate
	for key, e := range t.entries {
		if e.IsActive != wantActive {
			continue
		}
		candidates = append(candidates, candidate{key, e.LastActiveMicros})
	}
	if len(candidates) == 0 {
		return 0
	}
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
		delete(t.entries, candidates[i].key)
	}
	return n
}
