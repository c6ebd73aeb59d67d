// Package endpoint implements the listening-socket signal handler:
// it turns listen/close/shutdown syscall events into EndpointKey
// deltas fed to the endpoint tracker, the syscall-driven half of
// spec.md §4.5's merged sources of truth (the other half is the scrape
// ingester, internal/ingest/scrape). Grounded on the network signal
// handler's extract/modifier/relevance shape, generalized from
// connection tuples to listening endpoints.
package endpoint

import (
	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/registry"
	"github.com/hostwatch/agent/internal/tracker/endpoint"
)

type modifier uint8

const (
	modifierInvalid modifier = iota
	modifierAdd
	modifierRemove
)

var modifiers = map[event.Name]modifier{
	event.NameSocketListenX:   modifierAdd,
	event.NameSocketCloseX:    modifierRemove,
	event.NameSocketShutdownX: modifierRemove,
}

// Handler is the listening-endpoint half of spec.md §4.5.
type Handler struct {
	extractor event.Extractor
	tracker   *endpoint.Tracker
}

// New builds a Handler that updates tr.
func New(tr *endpoint.Tracker) *Handler {
	return &Handler{tracker: tr}
}

// Name implements registry.Handler.
func (h *Handler) Name() string { return "EndpointSignalHandler" }

// RelevantEvents implements registry.Handler.
func (h *Handler) RelevantEvents() []event.Name {
	return []event.Name{
		event.NameSocketListenX,
		event.NameSocketCloseX,
		event.NameSocketShutdownX,
	}
}

// HandleSignal turns one listen/close/shutdown event into an
// EndpointTracker.Update call.
func (h *Handler) HandleSignal(e event.RawEvent) registry.Result {
	mod, ok := modifiers[event.NameOf(e.EventType())]
	if !ok || mod == modifierInvalid {
		return registry.ResultIgnored
	}

	key, ok := h.extractKey(e)
	if !ok {
		return registry.ResultIgnored
	}

	originator := h.extractor.Originator(e)
	h.tracker.Update(key, originator, e.TSMicros(), mod == modifierAdd)
	return registry.ResultProcessed
}

// extractKey mirrors the network handler's extract, specialized to a
// single bound local endpoint rather than a client/server pair: a
// listening socket has no meaningful remote side.
func (h *Handler) extractKey(e event.RawEvent) (model.EndpointKey, bool) {
	if !h.extractor.Succeeded(e) {
		return model.EndpointKey{}, false
	}

	fd, ok := e.FDInfo()
	if !ok {
		return model.EndpointKey{}, false
	}
	if fd.Role != event.FDRoleServer {
		return model.EndpointKey{}, false
	}

	switch fd.Proto {
	case model.L4ProtoTCP, model.L4ProtoUDP:
	default:
		return model.EndpointKey{}, false
	}

	local := fd.Local
	local.Addr = model.NormalizeAddress(local.Addr)

	return model.EndpointKey{
		ContainerID: e.ContainerID(),
		Endpoint:    local,
		Proto:       fd.Proto,
	}, true
}
