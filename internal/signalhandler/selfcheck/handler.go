// Package selfcheck implements the one-shot startup verification
// handler (spec §9's design note): a short-lived registry, built only
// for the startup window, that confirms the driver is actually
// delivering events for a probe process identified by name or exe.
// Grounded on SelfCheckHandler.h/SelfCheckProcessHandler/
// SelfCheckNetworkHandler: two small handlers sharing an
// "is this event from the self-check process" test and a timeout.
package selfcheck

import (
	"time"

	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/registry"
)

// Identity names the process the startup probe spawns, so handlers
// can recognize events that came from it.
type Identity struct {
	Name string
	Exe  string
}

// Matches reports whether e was reported against the probe process.
// An empty Name or Exe never matches.
func (id Identity) Matches(e event.RawEvent) bool {
	return (id.Name != "" && e.Comm() == id.Name) || (id.Exe != "" && e.Exe() == id.Exe)
}

// base carries the shared timeout/seen-flag state both handlers below
// embed, mirroring the SelfCheckHandler base class.
type base struct {
	identity Identity
	deadline time.Time
	seen     bool
}

func newBase(identity Identity, timeout time.Duration) base {
	return base{identity: identity, deadline: time.Now().Add(timeout)}
}

func (b *base) timedOut() bool {
	return time.Now().After(b.deadline)
}

// ProcessHandler watches for the probe's own execve, confirming the
// driver reports process events at all (SelfCheckProcessHandler).
type ProcessHandler struct {
	base
}

// NewProcessHandler builds a ProcessHandler waiting up to timeout for
// identity's execve event.
func NewProcessHandler(identity Identity, timeout time.Duration) *ProcessHandler {
	return &ProcessHandler{base: newBase(identity, timeout)}
}

func (*ProcessHandler) Name() string { return "SelfCheckProcessHandler" }

func (*ProcessHandler) RelevantEvents() []event.Name {
	return []event.Name{event.NameExecveX}
}

func (h *ProcessHandler) HandleSignal(e event.RawEvent) registry.Result {
	if h.seen {
		return registry.ResultFinished
	}
	if h.identity.Matches(e) {
		h.seen = true
		return registry.ResultFinished
	}
	if h.timedOut() {
		return registry.ResultFinished
	}
	return registry.ResultIgnored
}

// Done reports whether this handler matched (as opposed to having
// simply timed out); Run returns an error unless both handlers are
// done.
func (h *ProcessHandler) Done() bool { return h.seen }

// NetworkHandler watches for the probe's own connect/accept/close/
// shutdown/getsockopt, confirming the driver reports socket events
// (SelfCheckNetworkHandler).
type NetworkHandler struct {
	base
}

// NewNetworkHandler builds a NetworkHandler waiting up to timeout for
// identity's socket events.
func NewNetworkHandler(identity Identity, timeout time.Duration) *NetworkHandler {
	return &NetworkHandler{base: newBase(identity, timeout)}
}

func (*NetworkHandler) Name() string { return "SelfCheckNetworkHandler" }

func (*NetworkHandler) RelevantEvents() []event.Name {
	return []event.Name{
		event.NameSocketCloseX,
		event.NameSocketShutdownX,
		event.NameSocketConnectX,
		event.NameSocketAcceptX,
		event.NameSocketGetsockoptX,
	}
}

func (h *NetworkHandler) HandleSignal(e event.RawEvent) registry.Result {
	if h.seen {
		return registry.ResultFinished
	}
	if h.identity.Matches(e) {
		h.seen = true
		return registry.ResultFinished
	}
	if h.timedOut() {
		return registry.ResultFinished
	}
	return registry.ResultIgnored
}

// Done reports whether this handler matched.
func (h *NetworkHandler) Done() bool { return h.seen }
