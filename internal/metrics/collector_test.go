package lwmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	lwmetrics "github.com/nettrail/linkwatch/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := lwmetrics.NewCollector(reg)

	if c.HellosConsumed == nil {
		t.Error("HellosConsumed is nil")
	}
	if c.LinkTransitions == nil {
		t.Error("LinkTransitions is nil")
	}
	if c.EnabledInterfaces == nil {
		t.Error("EnabledInterfaces is nil")
	}
	if c.ReaperRuns == nil {
		t.Error("ReaperRuns is nil")
	}
	if c.LoopsDetected == nil {
		t.Error("LoopsDetected is nil")
	}
	if c.LoopsStopped == nil {
		t.Error("LoopsStopped is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestHellosConsumed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := lwmetrics.NewCollector(reg)

	c.IncHellosConsumed("00:01:1")
	c.IncHellosConsumed("00:01:1")
	c.IncHellosConsumed("00:01:2")

	val := counterValue(t, c.HellosConsumed, "00:01:1")
	if val != 2 {
		t.Errorf("HellosConsumed(00:01:1) = %v, want 2", val)
	}

	val = counterValue(t, c.HellosConsumed, "00:01:2")
	if val != 1 {
		t.Errorf("HellosConsumed(00:01:2) = %v, want 1", val)
	}
}

func TestLinkTransitions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := lwmetrics.NewCollector(reg)

	// Record an init->up transition.
	c.RecordLinkTransition("init", "up")

	val := counterValue(t, c.LinkTransitions, "init", "up")
	if val != 1 {
		t.Errorf("LinkTransitions(init->up) = %v, want 1", val)
	}

	// Record an up->down transition.
	c.RecordLinkTransition("up", "down")

	val = counterValue(t, c.LinkTransitions, "up", "down")
	if val != 1 {
		t.Errorf("LinkTransitions(up->down) = %v, want 1", val)
	}

	// Record another init->up -- counter should be 2.
	c.RecordLinkTransition("init", "up")

	val = counterValue(t, c.LinkTransitions, "init", "up")
	if val != 2 {
		t.Errorf("LinkTransitions(init->up) = %v, want 2", val)
	}
}

func TestEnabledInterfacesGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := lwmetrics.NewCollector(reg)

	c.SetEnabledInterfaces(5)

	m := &dto.Metric{}
	if err := c.EnabledInterfaces.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 5 {
		t.Errorf("EnabledInterfaces = %v, want 5", got)
	}

	c.SetEnabledInterfaces(2)

	m = &dto.Metric{}
	if err := c.EnabledInterfaces.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 2 {
		t.Errorf("EnabledInterfaces = %v, want 2", got)
	}
}

func TestLoopCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := lwmetrics.NewCollector(reg)

	c.IncLoopDetected("00:aa")
	c.IncLoopDetected("00:aa")
	c.IncLoopStopped("00:aa")

	val := counterValue(t, c.LoopsDetected, "00:aa")
	if val != 2 {
		t.Errorf("LoopsDetected = %v, want 2", val)
	}

	val = counterValue(t, c.LoopsStopped, "00:aa")
	if val != 1 {
		t.Errorf("LoopsStopped = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
