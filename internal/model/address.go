// Package model holds the value types shared by every stage of the
// observation pipeline: addresses, endpoints, connection tuples and the
// records the trackers key on.
package model

import "net/netip"

// Address is an IPv4 or IPv6 address in canonical (network) byte order.
// The zero value represents "none" (no address), matching netip.Addr's
// own zero-value semantics.
type Address = netip.Addr

// NormalizeAddress collapses an IPv4-mapped IPv6 address (::ffff:a.b.c.d)
// to its plain IPv4 form so that both representations compare and hash
// identically. Applying it twice is a no-op.
func NormalizeAddress(a Address) Address {
	if !a.IsValid() {
		return a
	}
	return a.Unmap()
}

// AddressFromIPv4 builds an Address from four bytes in network order.
func AddressFromIPv4(b [4]byte) Address {
	return netip.AddrFrom4(b)
}

// AddressFromIPv6 builds an Address from sixteen bytes in network order,
// normalizing IPv4-mapped addresses on the way in.
func AddressFromIPv6(b [16]byte) Address {
	return NormalizeAddress(netip.AddrFrom16(b))
}

// IsUnspecified reports whether addr is the all-zeros (0.0.0.0 or ::)
// wildcard address.
func IsUnspecified(a Address) bool {
	return a.IsValid() && a.IsUnspecified()
}
