package liveness

// This file defines the liveness state enumeration and its fixed
// transition table. Both the interface machine (ILSM) and the link
// machine (LSM) share the same 3-state topology:
//
//	        +--------+
//	  +-----|  init  |-----+
//	  |     +--------+     |
//	  |       ^    ^       |
//	  v       |    |       v
//	+----+    |    |    +------+
//	| up |----+    +----| down |
//	+----+              +------+
//	  |                    ^
//	  +--------------------+
//	           (both directions)
//
// Every state can reach the other two; self-loops are not transitions.

// State is a liveness state of an interface side or of the whole link.
type State uint8

const (
	// StateInit indicates liveness has not yet been established: either
	// no hellos have been seen, or the side was reset by a rewire.
	StateInit State = iota

	// StateUp indicates hellos are arriving and the debounce threshold
	// has been met.
	StateUp

	// StateDown indicates hellos stopped for longer than the dead
	// interval.
	StateDown
)

// stateNames maps state values to their wire/API names.
var stateNames = [3]string{"init", "up", "down"}

// String returns the lowercase name of the state ("init", "up", "down").
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// canTransition reports whether the fixed table allows from -> to.
//
// The table is closed: init -> {up, down}, up -> {down, init},
// down -> {up, init}. A transition to the current state is not in the
// table, so callers observe "no transition" for self-loops.
func canTransition(from, to State) bool {
	switch from {
	case StateInit:
		return to == StateUp || to == StateDown
	case StateUp:
		return to == StateDown || to == StateInit
	case StateDown:
		return to == StateUp || to == StateInit
	default:
		return false
	}
}
