package liveness

import (
	"fmt"
	"time"
)

// ILSM is the interface liveness state machine: one per endpoint side of
// a tracked link pair.
//
// The machine is driven by two inputs: received hellos (ConsumeHello) and
// the periodic dead-interval check (ReaperCheck). The hello counter
// debounces the up transition so a single stray packet cannot flap the
// state; minHellos is the configured debounce threshold.
//
// ILSM is not safe for concurrent use; the owning Manager serializes
// access under its registry lock.
type ILSM struct {
	state        State
	minHellos    int
	helloCounter int

	// lastHelloAt is the zero time until the first hello arrives.
	lastHelloAt time.Time
}

// NewILSM creates an interface liveness state machine in StateInit.
// minHellos < 1 is a programmer error and panics; the configuration layer
// rejects such values before a machine is ever built.
func NewILSM(minHellos int) *ILSM {
	if minHellos < 1 {
		panic(fmt.Sprintf("liveness: minHellos must be >= 1, got %d", minHellos))
	}
	return &ILSM{state: StateInit, minHellos: minHellos}
}

// State returns the current state.
func (m *ILSM) State() State { return m.state }

// LastHelloAt returns the timestamp of the last received hello, or the
// zero time if no hello has been received.
func (m *ILSM) LastHelloAt() time.Time { return m.lastHelloAt }

// TransitionTo attempts a transition to the target state. On success the
// state is mutated and (target, true) is returned; otherwise the state is
// untouched and ok is false. A forbidden transition is a normal outcome,
// not an error.
func (m *ILSM) TransitionTo(target State) (State, bool) {
	if !canTransition(m.state, target) {
		return m.state, false
	}
	m.state = target
	return m.state, true
}

// ConsumeHello records a received hello. The hello timestamp is stored
// unconditionally. While not yet up, each hello advances the debounce
// counter; once the counter reaches minHellos and the table allows the
// move, the machine transitions to StateUp, resets the counter, and
// returns (StateUp, true). Any other call returns ok=false.
func (m *ILSM) ConsumeHello(receivedAt time.Time) (State, bool) {
	m.lastHelloAt = receivedAt
	if m.state != StateUp {
		m.helloCounter++
	}
	if m.helloCounter >= m.minHellos {
		if _, ok := m.TransitionTo(StateUp); ok {
			m.helloCounter = 0
			return StateUp, true
		}
	}
	return m.state, false
}

// ReaperCheck attempts the down transition when the last hello is older
// than deadInterval. It must be called every dead interval. A side that
// has never received a hello is not considered provably dead and is left
// untouched (ok=false).
func (m *ILSM) ReaperCheck(now time.Time, deadInterval time.Duration) (State, bool) {
	if !m.lastHelloAt.IsZero() && now.Sub(m.lastHelloAt) > deadInterval {
		m.helloCounter = 0
		return m.TransitionTo(StateDown)
	}
	return m.state, false
}

// String implements fmt.Stringer for log lines.
func (m *ILSM) String() string {
	return fmt.Sprintf("ILSM(%s, %s)", m.state, m.lastHelloAt.Format(time.RFC3339))
}
