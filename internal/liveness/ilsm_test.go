package liveness_test

import (
	"testing"
	"time"

	"github.com/nettrail/linkwatch/internal/liveness"
)

// -------------------------------------------------------------------------
// State
// -------------------------------------------------------------------------

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state liveness.State
		want  string
	}{
		{name: "init", state: liveness.StateInit, want: "init"},
		{name: "up", state: liveness.StateUp, want: "up"},
		{name: "down", state: liveness.StateDown, want: "down"},
		{name: "out of range", state: liveness.State(7), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.want {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

// TestTransitionTable exercises every (from, to) combination against the
// fixed table: each state reaches the other two, self-loops are refused.
func TestTransitionTable(t *testing.T) {
	t.Parallel()

	states := []liveness.State{liveness.StateInit, liveness.StateUp, liveness.StateDown}

	for _, from := range states {
		for _, to := range states {
			from, to := from, to
			t.Run(from.String()+"_to_"+to.String(), func(t *testing.T) {
				t.Parallel()

				m := liveness.NewILSM(1)
				if from != liveness.StateInit {
					if _, ok := m.TransitionTo(from); !ok {
						t.Fatalf("setup transition init -> %s refused", from)
					}
				}

				got, ok := m.TransitionTo(to)
				wantOK := from != to
				if ok != wantOK {
					t.Fatalf("TransitionTo(%s) from %s: ok = %v, want %v", to, from, ok, wantOK)
				}
				if wantOK && got != to {
					t.Errorf("TransitionTo(%s) from %s = %s", to, from, got)
				}
				if !wantOK && got != from {
					t.Errorf("refused transition mutated state: got %s, want %s", got, from)
				}
			})
		}
	}
}

// -------------------------------------------------------------------------
// ILSM
// -------------------------------------------------------------------------

func TestNewILSMPanicsOnInvalidMinHellos(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("NewILSM(0) did not panic")
		}
	}()
	liveness.NewILSM(0)
}

func TestILSMConsumeHelloDebounce(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	m := liveness.NewILSM(2)

	if got := m.State(); got != liveness.StateInit {
		t.Fatalf("initial state = %s, want init", got)
	}
	if !m.LastHelloAt().IsZero() {
		t.Fatalf("initial LastHelloAt = %v, want zero", m.LastHelloAt())
	}

	// First hello stores the timestamp but stays below the threshold.
	state, ok := m.ConsumeHello(base)
	if ok || state != liveness.StateInit {
		t.Fatalf("hello 1: got (%s, %v), want (init, false)", state, ok)
	}
	if got := m.LastHelloAt(); !got.Equal(base) {
		t.Fatalf("hello 1: LastHelloAt = %v, want %v", got, base)
	}

	// Second hello meets the threshold.
	state, ok = m.ConsumeHello(base.Add(time.Second))
	if !ok || state != liveness.StateUp {
		t.Fatalf("hello 2: got (%s, %v), want (up, true)", state, ok)
	}

	// Further hellos refresh the timestamp without re-transitioning.
	third := base.Add(2 * time.Second)
	state, ok = m.ConsumeHello(third)
	if ok || state != liveness.StateUp {
		t.Fatalf("hello 3: got (%s, %v), want (up, false)", state, ok)
	}
	if got := m.LastHelloAt(); !got.Equal(third) {
		t.Fatalf("hello 3: LastHelloAt = %v, want %v", got, third)
	}
}

func TestILSMConsumeHelloSingleThreshold(t *testing.T) {
	t.Parallel()

	m := liveness.NewILSM(1)
	state, ok := m.ConsumeHello(time.Now())
	if !ok || state != liveness.StateUp {
		t.Fatalf("got (%s, %v), want (up, true)", state, ok)
	}
}

func TestILSMReaper(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	dead := 15 * time.Second

	t.Run("never seen a hello", func(t *testing.T) {
		t.Parallel()

		m := liveness.NewILSM(2)
		state, ok := m.ReaperCheck(base.Add(time.Hour), dead)
		if ok || state != liveness.StateInit {
			t.Fatalf("got (%s, %v), want (init, false)", state, ok)
		}
	})

	t.Run("exactly at the dead interval", func(t *testing.T) {
		t.Parallel()

		m := liveness.NewILSM(1)
		m.ConsumeHello(base)
		state, ok := m.ReaperCheck(base.Add(dead), dead)
		if ok || state != liveness.StateUp {
			t.Fatalf("got (%s, %v), want (up, false)", state, ok)
		}
	})

	t.Run("past the dead interval", func(t *testing.T) {
		t.Parallel()

		m := liveness.NewILSM(1)
		m.ConsumeHello(base)
		state, ok := m.ReaperCheck(base.Add(dead+time.Nanosecond), dead)
		if !ok || state != liveness.StateDown {
			t.Fatalf("got (%s, %v), want (down, true)", state, ok)
		}
	})

	t.Run("stale init side goes down", func(t *testing.T) {
		t.Parallel()

		// One hello is not enough to come up with minHellos=2, but it is
		// enough to prove the side dead once it goes stale.
		m := liveness.NewILSM(2)
		m.ConsumeHello(base)
		state, ok := m.ReaperCheck(base.Add(2*dead), dead)
		if !ok || state != liveness.StateDown {
			t.Fatalf("got (%s, %v), want (down, true)", state, ok)
		}
	})

	t.Run("recovery needs a full debounce", func(t *testing.T) {
		t.Parallel()

		m := liveness.NewILSM(2)
		m.ConsumeHello(base)
		m.ConsumeHello(base.Add(time.Second))
		if got := m.State(); got != liveness.StateUp {
			t.Fatalf("setup state = %s, want up", got)
		}

		down := base.Add(time.Second + dead + time.Millisecond)
		if state, ok := m.ReaperCheck(down, dead); !ok || state != liveness.StateDown {
			t.Fatalf("reap: got (%s, %v), want (down, true)", state, ok)
		}

		// The hello counter was reset on the way down: a single hello
		// must not bring the side back up.
		state, ok := m.ConsumeHello(down.Add(time.Second))
		if ok || state != liveness.StateDown {
			t.Fatalf("hello 1 after down: got (%s, %v), want (down, false)", state, ok)
		}
		state, ok = m.ConsumeHello(down.Add(2 * time.Second))
		if !ok || state != liveness.StateUp {
			t.Fatalf("hello 2 after down: got (%s, %v), want (up, true)", state, ok)
		}
	})
}
