package model

// Connection is the deduplication identity for a tracked network flow:
// the container it belongs to plus its wire-level tuple. It is fully
// comparable, so it can be used directly as a map key in a
// ConnectionTable.
type Connection struct {
	ContainerID string
	Tuple       ConnectionTuple
}

// ConnStatus is the mutable state the tracker keeps per Connection.
// LastActiveMicros only ever increases for a given Connection within a
// single kernel generation (spec §3 invariant); callers must apply
// updates with max(), never overwrite.
type ConnStatus struct {
	LastActiveMicros uint64
	IsActive         bool
}
