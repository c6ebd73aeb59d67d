package selfcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/registry"
)

// Source is the minimal event stream the runner needs: pull raw
// events one at a time until ctx is cancelled. internal/ingest/ringbuf
// implements it.
type Source interface {
	Next(ctx context.Context) (event.RawEvent, error)
}

// Run builds a short-lived registry over a ProcessHandler and a
// NetworkHandler, dispatches from src until both report done or
// timeout elapses, and returns nil on success or an error describing
// which check never matched (spec.md §9: "a failed self-check is a
// Fatal error ... aborts startup").
//
// It never touches the steady-state registry the ingestion thread
// dispatches against afterward — this Registry is discarded when Run
// returns.
func Run(ctx context.Context, src Source, identity Identity, timeout time.Duration) error {
	proc := NewProcessHandler(identity, timeout)
	net := NewNetworkHandler(identity, timeout)
	reg := registry.Build([]registry.Handler{proc, net})

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if proc.Done() && net.Done() {
			return nil
		}
		if proc.timedOut() || net.timedOut() {
			break
		}

		e, err := src.Next(ctx)
		if err != nil {
			break
		}
		reg.Dispatch(e)
	}

	if proc.Done() && net.Done() {
		return nil
	}
	return fmt.Errorf("self-check timed out after %s: process_ok=%v network_ok=%v",
		timeout, proc.Done(), net.Done())
}
