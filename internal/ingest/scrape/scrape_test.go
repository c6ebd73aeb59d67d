package scrape

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

func startTestNATSServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	opts := &server.Options{Port: -1}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("starting test nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("test nats server did not become ready")
	}
	return ns, ns.ClientURL()
}

func publishSnapshot(t *testing.T, url, subject string, snap Snapshot) {
	t.Helper()
	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer nc.Close()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	if err := nc.Publish(subject, buf.Bytes()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	nc.Flush()
}

func testSnapshot(containerID string, port uint16, procName string) Snapshot {
	return Snapshot{
		ContainerID:      containerID,
		ScrapeTimeMicros: 1000,
		Endpoints: []model.ListeningEndpoint{
			{
				ContainerID: containerID,
				Endpoint:    model.Endpoint{Port: port},
				Proto:       model.L4ProtoTCP,
				Originator:  model.ProcessInfo{Name: procName, PID: 1},
			},
		},
	}
}

func TestIngesterMergesDecodedSnapshotIntoTracker(t *testing.T) {
	ns, url := startTestNATSServer(t)
	defer ns.Shutdown()

	subject := fmt.Sprintf("scrape.test.%d", time.Now().UnixNano())
	sub, err := NewSubscriber(url, subject)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer sub.Close()

	tracker := endpoint.New(0, nil)
	mgr := config.NewManager(config.Default())
	in := New(sub, tracker, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in.Start(ctx)
	defer in.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !sub.Subscribed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !sub.Subscribed() {
		t.Fatal("ingester never subscribed")
	}

	publishSnapshot(t, url, subject, testSnapshot("c1", 8080, "nginx"))

	deadline = time.Now().Add(2 * time.Second)
	for in.AppliedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if in.AppliedCount() == 0 {
		t.Fatal("snapshot never applied")
	}

	diff := tracker.ComputeDiff(1000, false, 0)
	if len(diff.Added) != 1 || diff.Added[0].Originator.Name != "nginx" {
		t.Fatalf("expected scraped endpoint added, got %+v", diff)
	}
}

func TestIngesterUnsubscribesWhenScrapeTurnedOff(t *testing.T) {
	ns, url := startTestNATSServer(t)
	defer ns.Shutdown()

	subject := fmt.Sprintf("scrape.test.%d", time.Now().UnixNano())
	sub, err := NewSubscriber(url, subject)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer sub.Close()

	tracker := endpoint.New(0, nil)
	off := config.Default()
	off.TurnOffScrape = true
	mgr := config.NewManager(off)
	in := New(sub, tracker, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in.Start(ctx)
	defer in.Stop()

	time.Sleep(50 * time.Millisecond)
	if sub.Subscribed() {
		t.Fatal("expected no subscription while turn_off_scrape is set")
	}
}

func TestSnapshotSeenBuildsEndpointKeyMap(t *testing.T) {
	snap := testSnapshot("c1", 443, "envoy")
	seen := snap.seen()
	if len(seen) != 1 {
		t.Fatalf("expected one entry, got %d", len(seen))
	}
	for key, originator := range seen {
		if key.ContainerID != "c1" || key.Endpoint.Port != 443 {
			t.Fatalf("unexpected key: %+v", key)
		}
		if originator.Name != "envoy" {
			t.Fatalf("unexpected originator: %+v", originator)
		}
	}
}
