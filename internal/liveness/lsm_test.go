package liveness_test

import (
	"testing"
	"time"

	"github.com/nettrail/linkwatch/internal/liveness"
)

// driveTo moves an endpoint machine into the requested state using its
// regular inputs (minHellos=1 machines come up on one hello, go down via
// the reaper).
func driveTo(t *testing.T, m *liveness.ILSM, target liveness.State) {
	t.Helper()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	switch target {
	case liveness.StateInit:
	case liveness.StateUp:
		if state, ok := m.ConsumeHello(base); !ok {
			t.Fatalf("driveTo up: got (%s, %v)", state, ok)
		}
	case liveness.StateDown:
		m.ConsumeHello(base)
		if state, ok := m.ReaperCheck(base.Add(time.Hour), time.Minute); !ok {
			t.Fatalf("driveTo down: got (%s, %v)", state, ok)
		}
	}
}

func TestLSMAggState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b liveness.State
		want liveness.State
	}{
		{name: "both init", a: liveness.StateInit, b: liveness.StateInit, want: liveness.StateInit},
		{name: "init beats up", a: liveness.StateInit, b: liveness.StateUp, want: liveness.StateInit},
		{name: "init beats down", a: liveness.StateDown, b: liveness.StateInit, want: liveness.StateInit},
		{name: "down beats up", a: liveness.StateDown, b: liveness.StateUp, want: liveness.StateDown},
		{name: "both down", a: liveness.StateDown, b: liveness.StateDown, want: liveness.StateDown},
		{name: "both up", a: liveness.StateUp, b: liveness.StateUp, want: liveness.StateUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, b := liveness.NewILSM(1), liveness.NewILSM(1)
			driveTo(t, a, tt.a)
			driveTo(t, b, tt.b)

			l := liveness.NewLSM(a, b)
			if got := l.AggState(); got != tt.want {
				t.Errorf("AggState() with (%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLSMNextState(t *testing.T) {
	t.Parallel()

	a, b := liveness.NewILSM(1), liveness.NewILSM(1)
	l := liveness.NewLSM(a, b)

	// Aggregate equals the applied state: no transition.
	if state, ok := l.NextState(); ok || state != liveness.StateInit {
		t.Fatalf("NextState() at rest = (%s, %v), want (init, false)", state, ok)
	}

	driveTo(t, a, liveness.StateUp)
	driveTo(t, b, liveness.StateUp)

	state, ok := l.NextState()
	if !ok || state != liveness.StateUp {
		t.Fatalf("NextState() = (%s, %v), want (up, true)", state, ok)
	}

	// Re-evaluating an unchanged aggregate is a no-op.
	if state, ok := l.NextState(); ok || state != liveness.StateUp {
		t.Fatalf("NextState() repeat = (%s, %v), want (up, false)", state, ok)
	}

	// One side aging out drags the link down.
	if state, ok := a.ReaperCheck(a.LastHelloAt().Add(48*time.Hour), time.Minute); !ok || state != liveness.StateDown {
		t.Fatalf("ReaperCheck = (%s, %v), want (down, true)", state, ok)
	}
	if state, ok := l.NextState(); !ok || state != liveness.StateDown {
		t.Fatalf("NextState() after reap = (%s, %v), want (down, true)", state, ok)
	}
}

func TestLSMAccessors(t *testing.T) {
	t.Parallel()

	a, b := liveness.NewILSM(1), liveness.NewILSM(1)
	l := liveness.NewLSM(a, b)

	if l.A() != a || l.B() != b {
		t.Error("A()/B() do not return the endpoint machines passed to NewLSM")
	}
	if got := l.State(); got != liveness.StateInit {
		t.Errorf("State() = %s, want init", got)
	}
}
