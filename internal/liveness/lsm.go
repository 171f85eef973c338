package liveness

import "fmt"

// LSM is the link liveness state machine: it owns the two endpoint ILSMs
// of an unordered interface pair and derives the link-level verdict.
//
// The link state only moves through NextState, which recomputes the
// aggregate and attempts a guarded transition over the same fixed table
// the ILSM uses. At most one transition happens per call; a forbidden
// move (including "already there") leaves the state unchanged.
type LSM struct {
	a     *ILSM
	b     *ILSM
	state State
}

// NewLSM creates a link machine over the two endpoint machines. The LSM
// takes exclusive ownership of both.
func NewLSM(a, b *ILSM) *LSM {
	return &LSM{a: a, b: b, state: StateInit}
}

// State returns the link's applied state (as opposed to the
// instantaneously computed aggregate).
func (l *LSM) State() State { return l.state }

// A returns the endpoint machine of the pair's smaller-ID side.
func (l *LSM) A() *ILSM { return l.a }

// B returns the endpoint machine of the pair's larger-ID side.
func (l *LSM) B() *ILSM { return l.b }

// AggState reduces the two endpoint states to a link-level state.
//
// Priority order: any init side wins (not-yet-known outranks known-bad
// during startup races), then any down side, then up when both sides are
// up. Unmodeled combinations default to init.
func (l *LSM) AggState() State {
	sa, sb := l.a.State(), l.b.State()
	switch {
	case sa == StateInit || sb == StateInit:
		return StateInit
	case sa == StateDown || sb == StateDown:
		return StateDown
	case sa == StateUp && sb == StateUp:
		return StateUp
	default:
		return StateInit
	}
}

// NextState recomputes the aggregate and attempts the guarded transition.
// Returns the new state and true when the link state actually changed;
// ok is false when the table forbids the move (including the case where
// the state already equals the aggregate).
func (l *LSM) NextState() (State, bool) {
	return l.transitionTo(l.AggState())
}

// transitionTo applies the shared fixed table to the link state.
func (l *LSM) transitionTo(target State) (State, bool) {
	if !canTransition(l.state, target) {
		return l.state, false
	}
	l.state = target
	return l.state, true
}

// String implements fmt.Stringer for log lines.
func (l *LSM) String() string {
	return fmt.Sprintf("LSM(%s, %s, %s)", l.AggState(), l.a, l.b)
}
