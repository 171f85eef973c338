package loop

// MetricsReporter receives loop engine measurements. The Prometheus
// collector in internal/metrics implements this interface; a no-op
// reporter is used when no collector is configured.
type MetricsReporter interface {
	// IncLoopDetected counts a newly flagged loop on the given switch.
	IncLoopDetected(dpid string)

	// IncLoopStopped counts a loop transitioned to stopped.
	IncLoopStopped(dpid string)
}

// noopMetrics is the default MetricsReporter.
type noopMetrics struct{}

func (noopMetrics) IncLoopDetected(string) {}
func (noopMetrics) IncLoopStopped(string)  {}
