// Package network implements the network signal handler: it turns
// connect/accept/close/shutdown syscall events into Connection deltas
// fed to the connection tracker (spec §4.3), grounded on the
// modifier-lookup/GetConnection shape of NetworkSignalHandler.cpp.
package network

import (
	"github.com/hostwatch/agent/internal/event"
	"github.com/hostwatch/agent/internal/model"
	"github.com/hostwatch/agent/internal/registry"
	"github.com/hostwatch/agent/internal/tracker/connection"
)

type modifier uint8

const (
	modifierInvalid modifier = iota
	modifierAdd
	modifierRemove
)

var modifiers = map[event.Name]modifier{
	event.NameSocketConnectX:  modifierAdd,
	event.NameSocketAcceptX:   modifierAdd,
	event.NameSocketCloseX:    modifierRemove,
	event.NameSocketShutdownX: modifierRemove,
}

// FilterSource returns the currently active relevance filter. The
// config package supplies this as a closure over an atomic pointer so
// the handler always reads the latest config without the handler
// package depending on config directly.
type FilterSource func() FilterConfig

// Handler is the network signal handler (spec §4.3).
type Handler struct {
	extractor event.Extractor
	tracker   *connection.Tracker
	filter    FilterSource
}

// New builds a Handler that updates tr and is gated by the filter
// filterSrc returns.
func New(tr *connection.Tracker, filterSrc FilterSource) *Handler {
	return &Handler{tracker: tr, filter: filterSrc}
}

// Name implements registry.Handler.
func (h *Handler) Name() string { return "NetworkSignalHandler" }

// RelevantEvents implements registry.Handler.
func (h *Handler) RelevantEvents() []event.Name {
	return []event.Name{
		event.NameSocketConnectX,
		event.NameSocketAcceptX,
		event.NameSocketCloseX,
		event.NameSocketShutdownX,
	}
}

// HandleSignal implements spec §4.3's algorithm end to end.
func (h *Handler) HandleSignal(e event.RawEvent) registry.Result {
	mod, ok := modifiers[event.NameOf(e.EventType())]
	if !ok || mod == modifierInvalid {
		return registry.ResultIgnored
	}

	conn, ok := h.extract(e)
	if !ok {
		return registry.ResultIgnored
	}

	if f := h.filter; f != nil && !f().IsRelevant(conn) {
		return registry.ResultIgnored
	}

	h.tracker.Update(conn, e.TSMicros(), mod == modifierAdd)
	return registry.ResultProcessed
}

// extract implements spec §4.3 steps 1-5 and the default relevance
// rule ("drop only if remote endpoint is unspecified").
func (h *Handler) extract(e event.RawEvent) (model.Connection, bool) {
	if !h.extractor.Succeeded(e) {
		return model.Connection{}, false
	}

	fd, ok := e.FDInfo()
	if !ok {
		return model.Connection{}, false
	}

	role := fd.Role
	if role != event.FDRoleClient && role != event.FDRoleServer {
		return model.Connection{}, false
	}

	switch fd.Proto {
	case model.L4ProtoTCP, model.L4ProtoUDP:
	default:
		return model.Connection{}, false
	}

	local := fd.Local
	remote := fd.Remote
	local.Addr = model.NormalizeAddress(local.Addr)
	remote.Addr = model.NormalizeAddress(remote.Addr)

	if model.IsUnspecified(remote.Addr) {
		return model.Connection{}, false
	}

	var tuple model.ConnectionTuple
	tuple.Proto = fd.Proto
	if role == event.FDRoleServer {
		tuple.Role = model.RoleServer
		tuple.Server = local
		tuple.Client = remote
	} else {
		tuple.Role = model.RoleClient
		tuple.Client = local
		tuple.Server = remote
	}

	return model.Connection{ContainerID: e.ContainerID(), Tuple: tuple}, true
}
