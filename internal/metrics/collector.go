package lwmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "linkwatch"
	subsystem = "lldp"
)

// Label names for linkwatch metrics.
const (
	labelInterfaceID = "interface_id"
	labelDPID        = "dpid"
	labelFromState   = "from_state"
	labelToState     = "to_state"
)

// -------------------------------------------------------------------------
// Collector
// -------------------------------------------------------------------------

// Collector holds all linkwatch Prometheus metrics.
//
// Metrics are designed for production SDN monitoring:
//   - Hello counters track LLDP liveness traffic volume per interface.
//   - Link transition counters record aggregated FSM changes for alerting.
//   - Loop counters flag topology faults per switch.
//   - The enabled gauge tracks how many interfaces liveness watches.
type Collector struct {
	// HellosConsumed counts LLDP hellos accepted into the liveness
	// engine per reporting interface.
	HellosConsumed *prometheus.CounterVec

	// LinkTransitions counts aggregated link-state machine transitions.
	// Each counter is labeled with the old state and new state for
	// precise alerting (e.g., up->down).
	LinkTransitions *prometheus.CounterVec

	// EnabledInterfaces tracks the number of interfaces currently
	// enabled for liveness monitoring.
	EnabledInterfaces prometheus.Gauge

	// ReaperRuns counts timeout-reaper sweeps.
	ReaperRuns prometheus.Counter

	// LoopsDetected counts new loop detections per switch.
	LoopsDetected *prometheus.CounterVec

	// LoopsStopped counts loop-stopped transitions per switch.
	LoopsStopped *prometheus.CounterVec
}

// NewCollector creates a Collector with all linkwatch metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "linkwatch_lldp_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.HellosConsumed,
		c.LinkTransitions,
		c.EnabledInterfaces,
		c.ReaperRuns,
		c.LoopsDetected,
		c.LoopsStopped,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		HellosConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hellos_consumed_total",
			Help:      "Total LLDP hellos consumed by the liveness engine.",
		}, []string{labelInterfaceID}),

		LinkTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "link_transitions_total",
			Help:      "Total aggregated link liveness state transitions.",
		}, []string{labelFromState, labelToState}),

		EnabledInterfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enabled_interfaces",
			Help:      "Number of interfaces enabled for liveness monitoring.",
		}),

		ReaperRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reaper_runs_total",
			Help:      "Total liveness timeout-reaper sweeps.",
		}),

		LoopsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loops_detected_total",
			Help:      "Total new loop detections per switch.",
		}, []string{labelDPID}),

		LoopsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loops_stopped_total",
			Help:      "Total loop-stopped transitions per switch.",
		}, []string{labelDPID}),
	}
}

// -------------------------------------------------------------------------
// Liveness Reporting
// -------------------------------------------------------------------------

// IncHellosConsumed increments the hello counter for the given interface.
// Called on each hello accepted by the liveness engine.
func (c *Collector) IncHellosConsumed(interfaceID string) {
	c.HellosConsumed.WithLabelValues(interfaceID).Inc()
}

// RecordLinkTransition increments the link transition counter with the
// old and new state labels. Used for alerting on link flaps.
func (c *Collector) RecordLinkTransition(from, to string) {
	c.LinkTransitions.WithLabelValues(from, to).Inc()
}

// SetEnabledInterfaces sets the enabled-interfaces gauge. Called after
// each enable/disable operation.
func (c *Collector) SetEnabledInterfaces(count int) {
	c.EnabledInterfaces.Set(float64(count))
}

// IncReaperRuns increments the reaper sweep counter.
func (c *Collector) IncReaperRuns() {
	c.ReaperRuns.Inc()
}

// -------------------------------------------------------------------------
// Loop Reporting
// -------------------------------------------------------------------------

// IncLoopDetected increments the detected-loops counter for the switch.
// Called only on new detections, not on refreshes of a known loop.
func (c *Collector) IncLoopDetected(dpid string) {
	c.LoopsDetected.WithLabelValues(dpid).Inc()
}

// IncLoopStopped increments the stopped-loops counter for the switch.
func (c *Collector) IncLoopStopped(dpid string) {
	c.LoopsStopped.WithLabelValues(dpid).Inc()
}
