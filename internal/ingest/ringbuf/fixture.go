package ringbuf

import (
	"context"
	"errors"
	"sync"

	"github.com/hostwatch/agent/internal/event"
)

// ErrFixtureClosed is returned by Fixture.Next once the fixture has
// been closed and its queued records are exhausted.
var ErrFixtureClosed = errors.New("ringbuf: fixture closed")

// Fixture is an in-memory Source double for tests and for local runs
// off Linux, where no real ring buffer map is available. It queues
// already-decoded events rather than raw bytes, since exercising the
// byte-level codec is codec_test.go's job, not this one's.
type Fixture struct {
	mu     sync.Mutex
	queue  []event.RawEvent
	notify chan struct{}
	closed bool
}

// NewFixture builds an empty Fixture.
func NewFixture() *Fixture {
	return &Fixture{notify: make(chan struct{}, 1)}
}

// Push enqueues an event for a future Next call to return.
func (f *Fixture) Push(e event.RawEvent) {
	f.mu.Lock()
	f.queue = append(f.queue, e)
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Close marks the fixture closed; pending Next calls return
// ErrFixtureClosed once the queue drains.
func (f *Fixture) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next implements the same contract as Source.Next.
func (f *Fixture) Next(ctx context.Context) (event.RawEvent, error) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			e := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return e, nil
		}
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return nil, ErrFixtureClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.notify:
		}
	}
}
