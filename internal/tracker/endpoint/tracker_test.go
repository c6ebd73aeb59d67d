package endpoint

import (
	"net/netip"
	"testing"

	"github.com/hostwatch/agent/internal/model"
)

func testKey(port uint16) model.EndpointKey {
	return model.EndpointKey{
		ContainerID: "c1",
		Endpoint:    model.Endpoint{Addr: netip.MustParseAddr("10.0.0.5"), Port: port},
		Proto:       model.L4ProtoTCP,
	}
}

func testProcess(name string) model.ProcessInfo {
	return model.ProcessInfo{Name: name, PID: 1}
}

func TestApplyScrapeMarksStaleInactive(t *testing.T) {
	tr := New(0, nil)
	key := testKey(80)

	tr.Update(key, testProcess("nginx"), 1000, true)
	tr.ComputeDiff(1000, false, 0)
	tr.Commit()

	// Scrape at T=5000 doesn't see this endpoint anymore.
	tr.ApplyScrape("c1", 5000, map[model.EndpointKey]model.ProcessInfo{})

	diff := tr.ComputeDiff(5000, false, 0)
	if len(diff.Removed) != 1 {
		t.Fatalf("expected removed after stale scrape, got %+v", diff)
	}
}

func TestSyscallWinsOverScrapeConflict(t *testing.T) {
	tr := New(0, nil)
	key := testKey(80)

	// Syscall observes it first, at T=5000, attributing to "envoy".
	tr.Update(key, testProcess("envoy"), 5000, true)

	// A scrape taken at T=3000 (started before the syscall event
	// landed) reports a stale originator "nginx".
	tr.ApplyScrape("c1", 3000, map[model.EndpointKey]model.ProcessInfo{
		key: testProcess("nginx"),
	})

	snap := tr.table.Snapshot()
	entry, ok := snap[key]
	if !ok {
		t.Fatalf("expected entry present")
	}
	if entry.Originator.Name != "envoy" {
		t.Fatalf("expected syscall attribution to win, got %q", entry.Originator.Name)
	}
}

func TestOutOfOrderCloseBeforeListenTimestampWins(t *testing.T) {
	tr := New(0, nil)
	key := testKey(9090)

	// Cross-CPU reorder: the close (ts=2_000_000) is processed before
	// the listen (ts=1_000_000) for the same key. The newest event by
	// timestamp must win, not the last one processed.
	tr.Update(key, testProcess("nginx"), 2_000_000, false)
	tr.Update(key, testProcess("nginx"), 1_000_000, true)

	snap := tr.table.Snapshot()
	entry, ok := snap[key]
	if !ok {
		t.Fatalf("expected entry to exist")
	}
	if entry.LastActiveMicros != 2_000_000 || entry.IsActive {
		t.Fatalf("expected last_active_time=2000000, is_active=false, got %+v", entry)
	}
}

func TestScrapeAddsNewEndpoint(t *testing.T) {
	tr := New(0, nil)
	key := testKey(443)

	tr.ApplyScrape("c1", 1000, map[model.EndpointKey]model.ProcessInfo{
		key: testProcess("nginx"),
	})

	diff := tr.ComputeDiff(1000, false, 0)
	if len(diff.Added) != 1 || diff.Added[0].Originator.Name != "nginx" {
		t.Fatalf("expected scraped endpoint to be added, got %+v", diff)
	}
}

func TestAfterglowAppliesPerEndpointIdentity(t *testing.T) {
	tr := New(0, nil)
	window := uint64(5_000_000)
	key := testKey(8080)

	tr.Update(key, testProcess("app"), 1000, true)
	tr.ComputeDiff(1000, true, window)
	tr.Commit()

	tr.Update(key, testProcess("app"), 1100, false)
	tr.Update(key, testProcess("app"), 1200, true)

	diff := tr.ComputeDiff(1200, true, window)
	if len(diff.Removed) != 0 || len(diff.Added) != 0 {
		t.Fatalf("expected flap suppressed by afterglow, got %+v", diff)
	}
}
