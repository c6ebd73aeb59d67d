package model

// ProcessInfo describes the process that owns one side of a tracked
// socket. The core treats it as opaque data supplied by the extractor;
// it never interprets Args or looks up PID/UID/GID itself.
type ProcessInfo struct {
	Name               string
	ExePath            string
	Args               []string
	PID                uint32
	UID                uint32
	GID                uint32
	ContainerStartTime uint64 // microseconds since epoch
}

// ListeningEndpoint is a bound (listening) socket observed for a
// container, together with the process that owns it at observation
// time.
type ListeningEndpoint struct {
	ContainerID string
	Endpoint    Endpoint
	Proto       L4Proto
	Originator  ProcessInfo
}

// EndpointKey is the identity under which the endpoint tracker
// deduplicates listening sockets: container, address/port, protocol.
type EndpointKey struct {
	ContainerID string
	Endpoint    Endpoint
	Proto       L4Proto
}
