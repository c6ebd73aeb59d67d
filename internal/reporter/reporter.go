// Package reporter implements the periodic reporter (spec §4.6): a
// single ticker thread that diffs both trackers, assembles an outbound
// message, and commits the diff once delivery is confirmed, or at once
// when the message would carry nothing.
// Grounded on the teacher's manager.go ticker/done/WaitGroup shape
// (runResetter/runSnapshotter), generalized to one tick that does
// diff+send+commit instead of separate snapshot/reset loops.
package reporter

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hostwatch/agent/internal/config"
	"github.com/hostwatch/agent/internal/transport"
	"github.com/hostwatch/agent/internal/transport/wire"
	"github.com/hostwatch/agent/internal/tracker/connection"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

// NowFunc is overridable in tests; production code leaves it as
// time.Now.
type NowFunc func() time.Time

// Reporter drives one tick of spec §4.6's algorithm on a timer.
type Reporter struct {
	connTracker *connection.Tracker
	endpTracker *endpoint.Tracker
	cfg         *config.Manager
	xport       transport.Transport

	hostID string
	now    NowFunc

	// onTick, if set, is called with every assembled message right
	// before Send, purely for test observability.
	onTick func(*wire.UpdateMessage)

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Reporter over the given trackers, config manager and
// transport.
func New(hostID string, connTracker *connection.Tracker, endpTracker *endpoint.Tracker, cfg *config.Manager, xport transport.Transport) *Reporter {
	return &Reporter{
		connTracker: connTracker,
		endpTracker: endpTracker,
		cfg:         cfg,
		xport:       xport,
		hostID:      hostID,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// Start begins the ticker loop. The tick period is re-read from the
// config manager after every tick, and the ticker is reset when it
// changed (spec §4.6: "re-read at each tick from runtime config").
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	interval := r.cfg.Load().ScrapeInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
			if next := r.cfg.Load().ScrapeInterval; next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-ctx.Done():
			// Cancellation: one final best-effort diff attempt, then
			// exit (spec §4.6's closing sentence).
			r.tick(context.Background())
			return
		case <-r.done:
			r.tick(context.Background())
			return
		}
	}
}

// Stop signals the ticker loop to take one final best-effort tick and
// exit, then waits for it to finish (graceful stop target: spec §5's
// ≤2x scrape interval).
func (r *Reporter) Stop() {
	close(r.done)
	r.wg.Wait()
}

// tick implements spec §4.6 steps 1-5.
func (r *Reporter) tick(ctx context.Context) {
	snap := r.cfg.Load()
	now := microsSince(r.nowOrDefault())

	connDiff := r.connTracker.ComputeDiff(now, snap.EnableAfterglow, snap.AfterglowPeriodMicros)
	// The endpoint tracker always diffs: turn_off_scrape only affects
	// whether the scrape ingester feeds it, not whether syscall-driven
	// deltas get reported.
	endpDiff := r.endpTracker.ComputeDiff(now, snap.EnableAfterglow, snap.AfterglowPeriodMicros)

	msg := assembleMessage(r.hostID, r.nowOrDefault(), connDiff, endpDiff)
	if msg.Empty() {
		// Nothing to deliver: commit so the staged reap set and
		// old_state take effect without a send.
		r.connTracker.Commit()
		r.endpTracker.Commit()
		return
	}

	if r.onTick != nil {
		r.onTick(msg)
	}

	if !r.xport.Ready() {
		// Back-pressure: spec §5, "equivalent to a failed delivery".
		r.connTracker.Discard()
		r.endpTracker.Discard()
		return
	}

	if err := r.xport.Send(ctx, msg); err != nil {
		log.Printf("reporter: send failed, deferring commit: %v", err)
		r.connTracker.Discard()
		r.endpTracker.Discard()
		return
	}

	r.connTracker.Commit()
	r.endpTracker.Commit()
}

func (r *Reporter) nowOrDefault() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func microsSince(t time.Time) uint64 {
	return uint64(t.UnixMicro())
}
