package selfcheck

import (
	"context"
	"testing"
	"time"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/registry"
)

type fakeEvent struct {
	typ  event.Type
	comm string
	exe  string
}

func (f fakeEvent) EventType() event.Type        { return f.typ }
func (f fakeEvent) Res() int64                   { return 0 }
func (f fakeEvent) TSMicros() uint64             { return 0 }
func (f fakeEvent) ContainerID() string          { return "" }
func (f fakeEvent) Comm() string                 { return f.comm }
func (f fakeEvent) Exe() string                  { return f.exe }
func (f fakeEvent) PID() uint32                  { return 0 }
func (f fakeEvent) UID() uint32                  { return 0 }
func (f fakeEvent) GID() uint32                  { return 0 }
func (f fakeEvent) FDInfo() (event.FDInfo, bool) { return event.FDInfo{}, false }

func typeFor(t *testing.T, name event.Name) event.Type {
	typ, ok := event.TypeOf(name)
	if !ok {
		t.Fatalf("unknown event name %q", name)
	}
	return typ
}

// queueSource plays back a fixed slice of events, then blocks until
// ctx is cancelled — enough to drive Run without a real ring buffer.
type queueSource struct {
	events []event.RawEvent
	idx    int
}

func (q *queueSource) Next(ctx context.Context) (event.RawEvent, error) {
	if q.idx < len(q.events) {
		e := q.events[q.idx]
		q.idx++
		return e, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessHandlerMatchesOnIdentity(t *testing.T) {
	id := Identity{Name: "probe", Exe: "/bin/probe"}
	h := NewProcessHandler(id, time.Second)

	if h.Done() {
		t.Fatal("expected not done before any event")
	}
	res := h.HandleSignal(fakeEvent{typ: typeFor(t, event.NameExecveX), comm: "probe"})
	if res != registry.ResultFinished {
		t.Fatalf("expected ResultFinished, got %v", res)
	}
	if !h.Done() {
		t.Fatal("expected Done() true after match")
	}
}

func TestNetworkHandlerTimesOutWithoutMatch(t *testing.T) {
	id := Identity{Name: "probe"}
	h := NewNetworkHandler(id, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	h.HandleSignal(fakeEvent{typ: typeFor(t, event.NameSocketConnectX), comm: "someone-else"})

	if h.Done() {
		t.Fatal("expected Done() false after timeout without a match")
	}
}

func TestRunSucceedsWhenBothHandlersMatch(t *testing.T) {
	id := Identity{Name: "probe"}
	src := &queueSource{events: []event.RawEvent{
		fakeEvent{typ: typeFor(t, event.NameExecveX), comm: "probe"},
		fakeEvent{typ: typeFor(t, event.NameSocketConnectX), comm: "probe"},
	}}

	err := Run(context.Background(), src, id, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunReturnsErrorOnTimeout(t *testing.T) {
	id := Identity{Name: "probe"}
	src := &queueSource{}

	err := Run(context.Background(), src, id, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
