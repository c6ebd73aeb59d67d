package model

import "fmt"

// Endpoint is an (address, port) pair identifying one side of a socket.
// Port zero is legal: it denotes an ephemeral, pre-bind socket.
type Endpoint struct {
	Addr Address
	Port uint16
}

// String renders the endpoint as "addr:port", matching how the kernel
// event's fd_info is usually logged.
func (e Endpoint) String() string {
	if !e.Addr.IsValid() {
		return fmt.Sprintf("<none>:%d", e.Port)
	}
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}
