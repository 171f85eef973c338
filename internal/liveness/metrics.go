package liveness

// MetricsReporter receives liveness engine measurements. The Prometheus
// collector in internal/metrics implements this interface; a no-op
// reporter is used when no collector is configured.
type MetricsReporter interface {
	// IncHellosConsumed counts a consumed hello for the given interface.
	IncHellosConsumed(interfaceID string)

	// RecordLinkTransition counts an applied LSM transition.
	RecordLinkTransition(from, to string)

	// SetEnabledInterfaces tracks the size of the liveness-enabled set.
	SetEnabledInterfaces(count int)

	// IncReaperRuns counts completed reaper sweeps.
	IncReaperRuns()
}

// noopMetrics is the default MetricsReporter.
type noopMetrics struct{}

func (noopMetrics) IncHellosConsumed(string)       {}
func (noopMetrics) RecordLinkTransition(_, _ string) {}
func (noopMetrics) SetEnabledInterfaces(int)       {}
func (noopMetrics) IncReaperRuns()                 {}
