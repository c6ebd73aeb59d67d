package network

import (
	"net/netip"

	"github.com/hostwatch/agent/internal/model"
)

// PortRange is an inclusive [Low, High] port range.
type PortRange struct {
	Low, High uint16
}

// Contains reports whether port falls within the range.
func (r PortRange) Contains(port uint16) bool {
	return port >= r.Low && port <= r.High
}

// FilterConfig holds the relevance-filter predicates (spec §4.3.1).
// It is carried inside the runtime config snapshot and read fresh on
// every event by the handler; it is never mutated in place.
type FilterConfig struct {
	IgnoreLocalhost    bool
	IgnoredCIDRs       []netip.Prefix
	IgnoredClientPorts []PortRange
	PrivilegedOnly     bool
}

// IsRelevant applies the predicates in the order spec §4.3.1 lists
// them, first match drops. It is always evaluated in addition to the
// default rule (drop if the remote endpoint is unspecified), which is
// applied unconditionally upstream in Handler.extract.
func (f FilterConfig) IsRelevant(conn model.Connection) bool {
	remote := conn.Tuple.Remote()

	if f.IgnoreLocalhost && remote.Addr.IsValid() && remote.Addr.IsLoopback() {
		return false
	}

	if remote.Addr.IsValid() {
		for _, cidr := range f.IgnoredCIDRs {
			if cidr.IsValid() && cidr.Contains(remote.Addr) {
				return false
			}
		}
	}

	client := conn.Tuple.Client
	for _, r := range f.IgnoredClientPorts {
		if r.Contains(client.Port) {
			return false
		}
	}

	if f.PrivilegedOnly {
		local := conn.Tuple.Local()
		if local.Port == 0 || local.Port >= 1024 {
			return false
		}
	}

	return true
}
