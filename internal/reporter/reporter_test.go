package reporter

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/transport/wire"
	"github.com/hostwatch/agent/internal/tracker/connection"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

type fakeTransport struct {
	mu      sync.Mutex
	ready   bool
	sendErr error
	sent    []*wire.UpdateMessage
}

func (f *fakeTransport) Send(ctx context.Context, msg *wire.UpdateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context) (*wire.ConfigMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeTransport) Ack(ctx context.Context, configErr error) error { return nil }

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func testConn() model.Connection {
	return model.Connection{
		ContainerID: "c1",
		Tuple: model.ConnectionTuple{
			Client: model.Endpoint{Addr: netip.MustParseAddr("10.0.0.1"), Port: 1},
			Server: model.Endpoint{Addr: netip.MustParseAddr("10.0.0.2"), Port: 443},
			Proto:  model.L4ProtoTCP,
			Role:   model.RoleClient,
		},
	}
}

func TestTickCommitsOnSuccessfulSend(t *testing.T) {
	ct := connection.New(0, nil)
	et := endpoint.New(0, nil)
	ct.Update(testConn(), 1000, true)

	cfg := config.NewManager(config.Default())
	xp := &fakeTransport{ready: true}
	r := New("host-1", ct, et, cfg, xp)
	r.now = func() time.Time { return time.UnixMicro(1000) }

	r.tick(context.Background())

	if len(xp.sent) != 1 {
		t.Fatalf("expected one message sent, got %d", len(xp.sent))
	}
	if len(xp.sent[0].AddedConnections) != 1 {
		t.Fatalf("expected one added connection, got %+v", xp.sent[0])
	}

	// Next tick should see it as still_open, so nothing new sent
	// (still_open never goes over the wire).
	r.tick(context.Background())
	if len(xp.sent) != 1 {
		t.Fatalf("expected still_open tick to send nothing, got %d messages", len(xp.sent))
	}
}

func TestTickDoesNotCommitOnSendFailure(t *testing.T) {
	ct := connection.New(0, nil)
	et := endpoint.New(0, nil)
	ct.Update(testConn(), 1000, true)

	cfg := config.NewManager(config.Default())
	xp := &fakeTransport{ready: true, sendErr: errors.New("stream reset")}
	r := New("host-1", ct, et, cfg, xp)
	r.now = func() time.Time { return time.UnixMicro(1000) }

	r.tick(context.Background())
	if len(xp.sent) != 0 {
		t.Fatalf("expected no message recorded on failed send")
	}

	// Recompute should still show it as added, since old_state was
	// never committed.
	diff := ct.ComputeDiff(1000, false, 0)
	if len(diff.Added) != 1 {
		t.Fatalf("expected added to be re-diffed after failed send, got %+v", diff)
	}
	ct.Discard()
}

func TestTickSkipsSendWhenTransportNotReady(t *testing.T) {
	ct := connection.New(0, nil)
	et := endpoint.New(0, nil)
	ct.Update(testConn(), 1000, true)

	cfg := config.NewManager(config.Default())
	xp := &fakeTransport{ready: false}
	r := New("host-1", ct, et, cfg, xp)
	r.now = func() time.Time { return time.UnixMicro(1000) }

	r.tick(context.Background())
	if len(xp.sent) != 0 {
		t.Fatalf("expected no send attempted while transport not ready")
	}

	diff := ct.ComputeDiff(1000, false, 0)
	if len(diff.Added) != 1 {
		t.Fatalf("expected added still pending after not-ready tick, got %+v", diff)
	}
	ct.Discard()
}

func TestTickSkipsEmptyDiff(t *testing.T) {
	ct := connection.New(0, nil)
	et := endpoint.New(0, nil)

	cfg := config.NewManager(config.Default())
	xp := &fakeTransport{ready: true}
	r := New("host-1", ct, et, cfg, xp)

	r.tick(context.Background())
	if len(xp.sent) != 0 {
		t.Fatalf("expected empty diff to skip send entirely")
	}
}
