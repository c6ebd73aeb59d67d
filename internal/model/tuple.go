package model

// L4Proto enumerates the transport protocols the pipeline tracks.
// Events carrying any other protocol are dropped at the network
// signal handler boundary (spec §4.3, step 3).
type L4Proto uint8

const (
	L4ProtoTCP L4Proto = iota
	L4ProtoUDP
	L4ProtoOther
)

func (p L4Proto) String() string {
	switch p {
	case L4ProtoTCP:
		return "TCP"
	case L4ProtoUDP:
		return "UDP"
	default:
		return "OTHER"
	}
}

// Role records which side of the tuple the observed process is on. It
// is determined once, at ingest, from the kernel fd-info's
// is_role_server/is_role_client bits — never inferred from which side
// looks like "from" or "to".
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// ConnectionTuple is the wire-level identity of a single network flow:
// client and server endpoints, transport protocol, and which side this
// host observed the socket from.
type ConnectionTuple struct {
	Client Endpoint
	Server Endpoint
	Proto  L4Proto
	Role   Role
}

// Local returns the endpoint belonging to the locally observed process,
// chosen by Role (server -> Server endpoint, client -> Client endpoint).
func (t ConnectionTuple) Local() Endpoint {
	if t.Role == RoleServer {
		return t.Server
	}
	return t.Client
}

// Remote returns the endpoint on the other side of Local.
func (t ConnectionTuple) Remote() Endpoint {
	if t.Role == RoleServer {
		return t.Client
	}
	return t.Server
}
