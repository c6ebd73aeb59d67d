// Package registry implements the signal handler registry: it maps
// event-type ordinals to the handlers that care about them via a
// precomputed filter bitmap, and dispatches one raw event to every
// matching handler (spec §4.2).
package registry

import (
	"log"

	"github.com/hostwatch/agent/internal/event"
)

// Result is a handler's (or the registry's aggregate) outcome for one
// dispatched event.
type Result int

const (
	ResultIgnored Result = iota
	ResultProcessed
	ResultFinished
	ResultError
)

// Handler is the capability every signal handler implements: which
// event names it cares about, and how it reacts to one.
type Handler interface {
	Name() string
	RelevantEvents() []event.Name
	HandleSignal(e event.RawEvent) Result
}

// Registry dispatches raw events to the handlers that declared
// interest in their type. It is built once and never mutated again:
// the dispatch path below takes no lock, per spec §4.2's "no locks on
// the dispatch path; the registry is immutable after start."
//
// The startup self-check handler (spec §9 design note) is the one
// exception to "immutable" in spirit, not in implementation: it runs
// in its own short-lived Registry, built solely for the startup
// verification window and discarded afterward, never in the
// steady-state registry the ingestion thread dispatches against.
type Registry struct {
	handlers []Handler
	bitmaps  []bitmap
	union    bitmap
}

// Build resolves every handler's declared relevant_events to dense
// ordinals and precomputes its bitmap plus the registry-wide union
// bitmap used for the cheap "does anyone care?" early exit.
func Build(handlers []Handler) *Registry {
	r := &Registry{
		handlers: handlers,
		bitmaps:  make([]bitmap, len(handlers)),
		union:    newBitmap(event.MaxEventTypes),
	}
	for i, h := range handlers {
		bm := newBitmap(event.MaxEventTypes)
		for _, name := range h.RelevantEvents() {
			t, ok := event.TypeOf(name)
			if !ok {
				log.Printf("registry: handler %q declared unknown event %q, ignoring", h.Name(), name)
				continue
			}
			bm.set(t)
		}
		r.bitmaps[i] = bm
		r.union = r.union.or(bm)
	}
	return r
}

// Dispatch routes e to every handler whose bitmap bit is set for its
// type, in registration order, and aggregates their results.
func (r *Registry) Dispatch(e event.RawEvent) Result {
	t := e.EventType()
	if !r.union.test(t) {
		return ResultIgnored
	}

	overall := ResultIgnored
	for i, h := range r.handlers {
		if !r.bitmaps[i].test(t) {
			continue
		}
		switch res := h.HandleSignal(e); res {
		case ResultError:
			log.Printf("registry: handler %q returned an error for event %q", h.Name(), event.NameOf(t))
		case ResultFinished:
			overall = ResultFinished
		case ResultProcessed:
			if overall != ResultFinished {
				overall = ResultProcessed
			}
		case ResultIgnored:
			// no-op
		}
	}
	return overall
}

// Handlers returns the registered handlers in dispatch order.
func (r *Registry) Handlers() []Handler {
	return r.handlers
}
