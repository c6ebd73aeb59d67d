package ringbuf

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/model"
)

// encodeSample builds a raw sample using the same layout decode
// expects, so the round trip exercises the real wire format rather
// than a shortcut.
func encodeSample(t *testing.T, typ event.Type, res int64, ts uint64, containerID, comm, exe string, fd *event.FDInfo) []byte {
	return encodeSampleWithIdentity(t, typ, res, ts, 0, 0, 0, containerID, comm, exe, fd)
}

func encodeSampleWithIdentity(t *testing.T, typ event.Type, res int64, ts uint64, pid, uid, gid uint32, containerID, comm, exe string, fd *event.FDInfo) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(byte(typ))

	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(res))
	buf.Write(tmp8[:])
	binary.LittleEndian.PutUint64(tmp8[:], ts)
	buf.Write(tmp8[:])

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], pid)
	buf.Write(tmp4[:])
	binary.LittleEndian.PutUint32(tmp4[:], uid)
	buf.Write(tmp4[:])
	binary.LittleEndian.PutUint32(tmp4[:], gid)
	buf.Write(tmp4[:])

	writeStr := func(s string) {
		buf.WriteByte(byte(len(s)))
		buf.WriteString(s)
	}
	writeStr(containerID)
	writeStr(comm)
	writeStr(exe)

	if fd == nil {
		buf.WriteByte(0)
		return buf.Bytes()
	}
	buf.WriteByte(1)
	buf.WriteByte(byte(fd.Role))
	buf.WriteByte(byte(fd.Proto))
	writeEndpoint(&buf, fd.Local)
	writeEndpoint(&buf, fd.Remote)
	return buf.Bytes()
}

func writeEndpoint(buf *bytes.Buffer, ep model.Endpoint) {
	if ep.Addr.Is4() {
		buf.WriteByte(0)
		v4 := ep.Addr.As4()
		buf.Write(v4[:])
		buf.Write(make([]byte, 12))
	} else {
		buf.WriteByte(1)
		v16 := ep.Addr.As16()
		buf.Write(v16[:])
	}
	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], ep.Port)
	buf.Write(portBuf[:])
}

func TestDecodeRoundTripsEventWithoutFDInfo(t *testing.T) {
	raw := encodeSample(t, event.Type(3), -1, 123456, "container-1", "curl", "/usr/bin/curl", nil)

	e, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.EventType() != event.Type(3) {
		t.Fatalf("type = %v, want 3", e.EventType())
	}
	if e.Res() != -1 {
		t.Fatalf("res = %d, want -1", e.Res())
	}
	if e.TSMicros() != 123456 {
		t.Fatalf("ts = %d, want 123456", e.TSMicros())
	}
	if e.ContainerID() != "container-1" || e.Comm() != "curl" || e.Exe() != "/usr/bin/curl" {
		t.Fatalf("strings decoded wrong: %+v", e)
	}
	if _, ok := e.FDInfo(); ok {
		t.Fatalf("expected no fd_info")
	}
}

func TestDecodeRoundTripsEventWithFDInfo(t *testing.T) {
	fd := event.FDInfo{
		Role:  event.FDRoleClient,
		Proto: model.L4ProtoTCP,
		Local: model.Endpoint{
			Addr: model.AddressFromIPv4([4]byte{127, 0, 0, 1}),
			Port: 54321,
		},
		Remote: model.Endpoint{
			Addr: model.AddressFromIPv4([4]byte{10, 0, 0, 5}),
			Port: 443,
		},
	}
	raw := encodeSample(t, event.Type(1), 0, 42, "", "nginx", "", &fd)

	e, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := e.FDInfo()
	if !ok {
		t.Fatalf("expected fd_info present")
	}
	if got.Role != fd.Role || got.Proto != fd.Proto {
		t.Fatalf("role/proto mismatch: %+v", got)
	}
	if got.Local.Addr != fd.Local.Addr || got.Local.Port != fd.Local.Port {
		t.Fatalf("local endpoint mismatch: %+v", got.Local)
	}
	if got.Remote.Addr != fd.Remote.Addr || got.Remote.Port != fd.Remote.Port {
		t.Fatalf("remote endpoint mismatch: %+v", got.Remote)
	}
}

func TestDecodeRoundTripsProcessIdentity(t *testing.T) {
	raw := encodeSampleWithIdentity(t, event.Type(4), 0, 99, 4242, 1000, 1000, "", "nginx", "/usr/sbin/nginx", nil)

	e, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.PID() != 4242 || e.UID() != 1000 || e.GID() != 1000 {
		t.Fatalf("identity decoded wrong: pid=%d uid=%d gid=%d", e.PID(), e.UID(), e.GID())
	}
}

func TestDecodeTruncatedSampleErrors(t *testing.T) {
	raw := encodeSample(t, event.Type(1), 0, 42, "x", "y", "z", nil)
	_, err := decode(raw[:3])
	if err == nil {
		t.Fatalf("expected error decoding truncated sample")
	}
}

func TestFixtureNextReturnsQueuedEventsInOrder(t *testing.T) {
	f := NewFixture()
	e1, _ := decode(encodeSample(t, event.Type(0), 0, 1, "", "a", "", nil))
	e2, _ := decode(encodeSample(t, event.Type(0), 0, 2, "", "b", "", nil))
	f.Push(e1)
	f.Push(e2)

	ctx := context.Background()
	got1, err := f.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got1.Comm() != "a" {
		t.Fatalf("got %q, want a", got1.Comm())
	}
	got2, err := f.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got2.Comm() != "b" {
		t.Fatalf("got %q, want b", got2.Comm())
	}
}

func TestFixtureNextReturnsClosedErrorOnceDrained(t *testing.T) {
	f := NewFixture()
	f.Close()

	_, err := f.Next(context.Background())
	if err != ErrFixtureClosed {
		t.Fatalf("err = %v, want ErrFixtureClosed", err)
	}
}

func TestFixtureNextRespectsContextCancellation(t *testing.T) {
	f := NewFixture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Next(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
