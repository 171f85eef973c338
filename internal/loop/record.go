package loop

import "time"

// State is the lifecycle state of a loop record. Records are never
// deleted, only transitioned: they are the durable history of a
// port-pair's loop status.
type State uint8

const (
	// StateDetected indicates the loop is currently being observed.
	StateDetected State = iota

	// StateStopped indicates the loop is no longer observed, either
	// because an explicit stop event arrived or because the periodic
	// sweep found it stale.
	StateStopped
)

// String returns the lowercase name of the state.
func (s State) String() string {
	if s == StateStopped {
		return "stopped"
	}
	return "detected"
}

// PortPair is an ordered pair of switch-local port numbers. Detection
// guarantees A <= B; A == B is the hairpin case (same port on both
// sides).
type PortPair struct {
	A int
	B int
}

// recordKey identifies a loop record: one switch, one port pair. A flat
// composite key avoids nested per-dpid maps.
type recordKey struct {
	dpid string
	pair PortPair
}

// Record is the durable loop state for one (switch, port-pair).
type Record struct {
	State       State
	PortNumbers [2]int
	DetectedAt  time.Time
	UpdatedAt   time.Time

	// StoppedAt is the zero time while the loop has never stopped.
	StoppedAt time.Time
}

// RecordView is a read-only copy of a Record plus its key, exposed to
// the REST API.
type RecordView struct {
	DPID        string
	PortNumbers [2]int
	State       State
	DetectedAt  time.Time
	UpdatedAt   time.Time
	StoppedAt   time.Time
}
