package ringbuf

import (
	"encoding/binary"
	"fmt"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/model"
)

// Wire layout for one raw sample, a flat byte encoding the driver
// writes directly into the ring buffer: no framing beyond the ring
// buffer's own record boundary, little-endian throughout, strings
// length-prefixed by one byte (the fields this pipeline reads — comm,
// exe, container id — are all short kernel-side identifiers).
//
//	byte    0      : event type ordinal (event.Type)
//	bytes   1-8     : raw syscall result (int64)
//	bytes   9-16    : timestamp, microseconds since boot (uint64)
//	bytes   17-20   : pid (uint32)
//	bytes   21-24   : uid (uint32)
//	bytes   25-28   : gid (uint32)
//	byte    29      : container id length
//	...             : container id bytes
//	byte    N       : comm length
//	...             : comm bytes
//	byte    M       : exe length
//	...             : exe bytes
//	byte    P       : has_fd_info (0 or 1); if 0, decoding stops here
//	byte    P+1     : fd role (event.FDRole)
//	byte    P+2     : fd proto (model.L4Proto)
//	byte    P+3     : local addr is IPv6 (0 or 1)
//	bytes   P+4..+19: local addr, 16 bytes (IPv4 uses the first 4)
//	bytes   P+20..21: local port (uint16)
//	byte    P+22    : remote addr is IPv6 (0 or 1)
//	bytes   P+23..38: remote addr, 16 bytes
//	bytes   P+39..40: remote port (uint16)
func decode(raw []byte) (*decodedEvent, error) {
	r := &byteReader{buf: raw}

	typByte, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading type: %w", err)
	}

	res, err := r.int64()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading res: %w", err)
	}

	ts, err := r.uint64()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading ts: %w", err)
	}

	pid, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading pid: %w", err)
	}
	uid, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading uid: %w", err)
	}
	gid, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading gid: %w", err)
	}

	containerID, err := r.shortString()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading container id: %w", err)
	}
	comm, err := r.shortString()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading comm: %w", err)
	}
	exe, err := r.shortString()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: short sample reading exe: %w", err)
	}

	e := &decodedEvent{
		typ:         event.Type(typByte),
		res:         res,
		tsMicros:    ts,
		pid:         pid,
		uid:         uid,
		gid:         gid,
		containerID: containerID,
		comm:        comm,
		exe:         exe,
	}

	hasFD, err := r.byte()
	if err != nil {
		// A sample that ends here simply carries no fd_info, which is
		// valid for e.g. execve events.
		return e, nil
	}
	if hasFD == 0 {
		return e, nil
	}

	fd, err := decodeFDInfo(r)
	if err != nil {
		return nil, fmt.Errorf("ringbuf: decoding fd_info: %w", err)
	}
	e.fd = fd
	e.hasFD = true
	return e, nil
}

func decodeFDInfo(r *byteReader) (event.FDInfo, error) {
	roleByte, err := r.byte()
	if err != nil {
		return event.FDInfo{}, err
	}
	protoByte, err := r.byte()
	if err != nil {
		return event.FDInfo{}, err
	}

	local, err := decodeEndpoint(r)
	if err != nil {
		return event.FDInfo{}, fmt.Errorf("local endpoint: %w", err)
	}
	remote, err := decodeEndpoint(r)
	if err != nil {
		return event.FDInfo{}, fmt.Errorf("remote endpoint: %w", err)
	}

	return event.FDInfo{
		Role:   event.FDRole(roleByte),
		Proto:  model.L4Proto(protoByte),
		Local:  local,
		Remote: remote,
	}, nil
}

func decodeEndpoint(r *byteReader) (model.Endpoint, error) {
	isV6, err := r.byte()
	if err != nil {
		return model.Endpoint{}, err
	}
	var addrBytes [16]byte
	if err := r.fixed(addrBytes[:]); err != nil {
		return model.Endpoint{}, err
	}
	port, err := r.uint16()
	if err != nil {
		return model.Endpoint{}, err
	}

	var addr model.Address
	if isV6 != 0 {
		addr = model.AddressFromIPv6(addrBytes)
	} else {
		var v4 [4]byte
		copy(v4[:], addrBytes[:4])
		addr = model.AddressFromIPv4(v4)
	}
	return model.Endpoint{Addr: addr, Port: port}, nil
}

// byteReader is a tiny bounds-checked cursor over a raw sample; it
// exists so decode doesn't repeat the same "slice too short" check at
// every field.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) byte() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of sample")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) fixed(dst []byte) error {
	if r.pos+len(dst) > len(r.buf) {
		return fmt.Errorf("unexpected end of sample")
	}
	copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return nil
}

func (r *byteReader) uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of sample")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) uint16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of sample")
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) uint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("unexpected end of sample")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

func (r *byteReader) shortString() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := r.fixed(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
