package ringbuf

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf"
	cilium_ringbuf "github.com/cilium/ebpf/ringbuf"

	"github.com/hostwatch/agent/internal/event"
)

// Source adapts a live cilium/ebpf ring buffer map into the
// dispatcher's pull loop.
type Source struct {
	reader *cilium_ringbuf.Reader
}

// Open wraps an already-loaded ring buffer map. The caller (outside
// this package, per spec.md's scoping of the driver itself) owns
// loading the BPF program and creating m.
func Open(m *ebpf.Map) (*Source, error) {
	r, err := cilium_ringbuf.NewReader(m)
	if err != nil {
		return nil, fmt.Errorf("ringbuf: open reader: %w", err)
	}
	return &Source{reader: r}, nil
}

// Close stops the reader; any Next call blocked in Read returns an
// error immediately.
func (s *Source) Close() error {
	return s.reader.Close()
}

// Next blocks until one record is available, decodes it, and returns
// it as an event.RawEvent. It implements the same Next(ctx) shape
// internal/signalhandler/selfcheck.Source expects, and is the source
// the ingestion thread's dispatch loop pulls from.
func (s *Source) Next(ctx context.Context) (event.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := s.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ringbuf: read: %w", err)
	}
	e, err := decode(rec.RawSample)
	if err != nil {
		return nil, err
	}
	return e, nil
}
