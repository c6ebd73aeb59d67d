package endpoint

import (
	"net/netip"
	"testing"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/registry"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

type fakeEvent struct {
	typ           event.Type
	res           int64
	ts            uint64
	containerID   string
	comm, exe     string
	pid, uid, gid uint32
	fd            event.FDInfo
	hasFD         bool
}

func (f fakeEvent) EventType() event.Type        { return f.typ }
func (f fakeEvent) Res() int64                   { return f.res }
func (f fakeEvent) TSMicros() uint64             { return f.ts }
func (f fakeEvent) ContainerID() string          { return f.containerID }
func (f fakeEvent) Comm() string                 { return f.comm }
func (f fakeEvent) Exe() string                  { return f.exe }
func (f fakeEvent) PID() uint32                  { return f.pid }
func (f fakeEvent) UID() uint32                  { return f.uid }
func (f fakeEvent) GID() uint32                  { return f.gid }
func (f fakeEvent) FDInfo() (event.FDInfo, bool) { return f.fd, f.hasFD }

func typeFor(t *testing.T, name event.Name) event.Type {
	typ, ok := event.TypeOf(name)
	if !ok {
		t.Fatalf("unknown event name %q", name)
	}
	return typ
}

func TestHandlerAddsEndpointOnListen(t *testing.T) {
	tr := endpoint.New(0, nil)
	h := New(tr)

	e := fakeEvent{
		typ:         typeFor(t, event.NameSocketListenX),
		res:         0,
		ts:          1000,
		containerID: "c1",
		comm:        "nginx",
		exe:         "/usr/sbin/nginx",
		pid:         42,
		hasFD:       true,
		fd: event.FDInfo{
			Role:  event.FDRoleServer,
			Proto: model.L4ProtoTCP,
			Local: model.Endpoint{Addr: netip.MustParseAddr("0.0.0.0"), Port: 80},
		},
	}

	if res := h.HandleSignal(e); res != registry.ResultProcessed {
		t.Fatalf("expected ResultProcessed, got %v", res)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected one tracked endpoint, got %d", tr.Len())
	}

	diff := tr.ComputeDiff(1000, false, 0)
	if len(diff.Added) != 1 || diff.Added[0].Originator.Name != "nginx" || diff.Added[0].Originator.PID != 42 {
		t.Fatalf("expected originator attributed, got %+v", diff.Added)
	}
}

func TestHandlerRemovesEndpointOnClose(t *testing.T) {
	tr := endpoint.New(0, nil)
	h := New(tr)

	local := model.Endpoint{Addr: netip.MustParseAddr("10.0.0.1"), Port: 8080}
	listen := fakeEvent{
		typ: typeFor(t, event.NameSocketListenX), res: 0, ts: 1000, hasFD: true,
		fd: event.FDInfo{Role: event.FDRoleServer, Proto: model.L4ProtoTCP, Local: local},
	}
	h.HandleSignal(listen)
	tr.ComputeDiff(1000, false, 0)
	tr.Commit()

	closeEv := fakeEvent{
		typ: typeFor(t, event.NameSocketCloseX), res: 0, ts: 2000, hasFD: true,
		fd: event.FDInfo{Role: event.FDRoleServer, Proto: model.L4ProtoTCP, Local: local},
	}
	if res := h.HandleSignal(closeEv); res != registry.ResultProcessed {
		t.Fatalf("expected ResultProcessed, got %v", res)
	}

	diff := tr.ComputeDiff(2000, false, 0)
	if len(diff.Removed) != 1 {
		t.Fatalf("expected removed delta, got %+v", diff)
	}
}

func TestHandlerIgnoresClientRoleEvents(t *testing.T) {
	tr := endpoint.New(0, nil)
	h := New(tr)

	e := fakeEvent{
		typ: typeFor(t, event.NameSocketListenX), res: 0, hasFD: true,
		fd: event.FDInfo{
			Role:  event.FDRoleClient,
			Proto: model.L4ProtoTCP,
			Local: model.Endpoint{Addr: netip.MustParseAddr("10.0.0.1"), Port: 443},
		},
	}
	if res := h.HandleSignal(e); res != registry.ResultIgnored {
		t.Fatalf("expected ResultIgnored for client-role event, got %v", res)
	}
}

func TestHandlerIgnoresFailedSyscall(t *testing.T) {
	tr := endpoint.New(0, nil)
	h := New(tr)

	e := fakeEvent{typ: typeFor(t, event.NameSocketListenX), res: -1, hasFD: true}
	if res := h.HandleSignal(e); res != registry.ResultIgnored {
		t.Fatalf("expected ResultIgnored for failed syscall, got %v", res)
	}
}
