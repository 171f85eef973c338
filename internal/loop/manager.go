package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettrail/linkwatch/internal/event"
	"github.com/nettrail/linkwatch/internal/topology"
)

// Mitigation action names.
const (
	// ActionLog emits a debounced warning log line for each persistent
	// loop.
	ActionLog = "log"

	// ActionDisable administratively disables the looped interface via
	// the external interface-control endpoint.
	ActionDisable = "disable"
)

// LoopedMetadataKey is the interface metadata key written while a loop is
// flagged on that interface and removed when the loop stops.
const LoopedMetadataKey = "looped"

// IgnoredLoopsMetadataKey is the switch metadata key holding the
// per-switch list of port pairs exempt from loop processing.
const IgnoredLoopsMetadataKey = "ignored_loops"

// Configuration errors.
var (
	// ErrInvalidLogEvery indicates the log debounce period is below 1.
	ErrInvalidLogEvery = errors.New("log_every must be >= 1")

	// ErrUnsupportedAction indicates a configured mitigation action is
	// not one of log/disable.
	ErrUnsupportedAction = errors.New("unsupported loop action")

	// ErrInvalidStoppedInterval indicates the loop staleness threshold
	// is not positive.
	ErrInvalidStoppedInterval = errors.New("stopped interval must be > 0")
)

// Publisher abstracts the outbound event channel.
type Publisher interface {
	Publish(ev event.Event)
}

// InterfaceControl is the external interface enable/disable endpoint the
// mitigation actions call. Both operations are idempotent on the remote
// side; failures are logged and never retried by this package.
type InterfaceControl interface {
	EnableInterface(ctx context.Context, interfaceID string) error
	DisableInterface(ctx context.Context, interfaceID string) error
}

// -------------------------------------------------------------------------
// Configuration
// -------------------------------------------------------------------------

// Config holds the loop engine tunables.
type Config struct {
	// Actions is the set of mitigation actions applied on detection,
	// a subset of {log, disable}.
	Actions []string

	// StoppedInterval is the staleness threshold after which a detected
	// loop with no fresh observations is considered stopped. Derived
	// externally as polling interval times the loop dead multiplier.
	StoppedInterval time.Duration

	// LogEvery debounces the log action: one warning line per LogEvery
	// occurrences of the same loop.
	LogEvery int

	// IgnoredLoops seeds the per-dpid ignore list; switch metadata can
	// replace entries at runtime.
	IgnoredLoops map[string][]PortPair
}

func (c Config) validate() error {
	if c.LogEvery < 1 {
		return ErrInvalidLogEvery
	}
	if c.StoppedInterval <= 0 {
		return ErrInvalidStoppedInterval
	}
	for _, a := range c.Actions {
		if a != ActionLog && a != ActionDisable {
			return fmt.Errorf("action %q: %w", a, ErrUnsupportedAction)
		}
	}
	return nil
}

// -------------------------------------------------------------------------
// Manager
// -------------------------------------------------------------------------

// Manager detects duplicate-observation loops and tracks their lifecycle.
//
// One lock guards the record map, the debounce counters, and the ignore
// list. Mutating operations hold it only for the state mutation; outbound
// mitigation calls are issued after it is released so a slow control
// endpoint cannot block other loop detections.
type Manager struct {
	mu       sync.Mutex
	records  map[recordKey]*Record
	counters map[recordKey]int
	ignored  map[string][]PortPair

	actions         []string
	stoppedInterval time.Duration
	logEvery        int

	registry *topology.Registry
	pub      Publisher
	control  InterfaceControl
	clock    clockwork.Clock
	metrics  MetricsReporter
	logger   *slog.Logger
}

// ManagerOption configures optional Manager parameters.
type ManagerOption func(*Manager)

// WithClock sets the clock used for record timestamps and staleness
// checks. Tests inject a clockwork fake clock.
func WithClock(clock clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMetrics sets the MetricsReporter. If mr is nil, a no-op reporter
// is used.
func WithMetrics(mr MetricsReporter) ManagerOption {
	return func(m *Manager) {
		if mr != nil {
			m.metrics = mr
		}
	}
}

// NewManager creates a loop manager.
func NewManager(
	cfg Config,
	registry *topology.Registry,
	pub Publisher,
	control InterfaceControl,
	logger *slog.Logger,
	opts ...ManagerOption,
) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("loop config: %w", err)
	}

	ignored := make(map[string][]PortPair, len(cfg.IgnoredLoops))
	for dpid, pairs := range cfg.IgnoredLoops {
		ignored[dpid] = append([]PortPair(nil), pairs...)
	}

	m := &Manager{
		records:         make(map[recordKey]*Record),
		counters:        make(map[recordKey]int),
		ignored:         ignored,
		actions:         append([]string(nil), cfg.Actions...),
		stoppedInterval: cfg.StoppedInterval,
		logEvery:        cfg.LogEvery,
		registry:        registry,
		pub:             pub,
		control:         control,
		clock:           clockwork.NewRealClock(),
		metrics:         noopMetrics{},
		logger:          logger.With(slog.String("component", "loop.manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// -------------------------------------------------------------------------
// Detection
// -------------------------------------------------------------------------

// IsLooped reports whether the two observation endpoints form a loop:
// same switch and portA <= portB. The <= keeps the hairpin case (same
// port both sides) and guarantees a loop observed from both directions
// is processed once: the complementary observation with the ports
// swapped fails the check when the ports differ.
func IsLooped(dpidA string, portA int, dpidB string, portB int) bool {
	return dpidA == dpidB && portA <= portB
}

// IsLoopIgnored reports whether the unordered port pair appears in the
// switch's ignore list (either ordering).
func (m *Manager) IsLoopIgnored(dpid string, portA, portB int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.ignored[dpid] {
		if (p.A == portA && p.B == portB) || (p.A == portB && p.B == portA) {
			return true
		}
	}
	return false
}

// ProcessIfLooped checks whether the two interfaces form a non-ignored
// loop and, if so, records the detection. The loop.detected event and the
// per-action events are published only when the record is new (created,
// or resurrected from stopped); repeated detections of an already flagged
// loop cost a timestamp bump only.
//
// Returns whether a loop was flagged.
func (m *Manager) ProcessIfLooped(interfaceA, interfaceB *topology.Interface) bool {
	dpidA := interfaceA.Switch().DPID()
	dpidB := interfaceB.Switch().DPID()
	portA := interfaceA.PortNumber()
	portB := interfaceB.PortNumber()

	if !IsLooped(dpidA, portA, dpidB, portB) || m.IsLoopIgnored(dpidA, portA, portB) {
		return false
	}

	if m.setLoopDetected(interfaceA, PortPair{A: portA, B: portB}) {
		m.metrics.IncLoopDetected(dpidA)
		m.PublishLoopState(interfaceA, interfaceB, StateDetected)
		m.publishLoopActions(interfaceA, interfaceB)
	}
	return true
}

// setLoopDetected creates or refreshes the loop record under the lock.
// Reports whether the detection is "new": first sight of the pair, or a
// resurrection of a previously stopped record. Only a new detection
// writes the looped metadata onto the reporting interface.
func (m *Manager) setLoopDetected(intf *topology.Interface, pair PortPair) bool {
	key := recordKey{dpid: intf.Switch().DPID(), pair: pair}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	isNew := false
	rec, ok := m.records[key]
	switch {
	case !ok:
		rec = &Record{
			State:       StateDetected,
			PortNumbers: [2]int{pair.A, pair.B},
			DetectedAt:  now,
			UpdatedAt:   now,
		}
		m.records[key] = rec
		isNew = true
	case rec.State != StateDetected:
		rec.State = StateDetected
		rec.DetectedAt = now
		rec.UpdatedAt = now
		rec.StoppedAt = time.Time{}
		isNew = true
	default:
		rec.UpdatedAt = now
	}

	if isNew {
		intf.ExtendMetadata(map[string]any{
			LoopedMetadataKey: map[string]any{
				"port_numbers": []int{pair.A, pair.B},
				"detected_at":  rec.DetectedAt,
			},
		})
	}
	return isNew
}

// PublishLoopState publishes a loop.<state> event for the pair.
func (m *Manager) PublishLoopState(
	interfaceA, interfaceB *topology.Interface,
	state State,
) {
	name := event.LoopDetected
	if state == StateStopped {
		name = event.LoopStopped
	}
	m.pub.Publish(event.Event{
		Name: name,
		Content: event.LoopState{
			InterfaceID: interfaceA.ID(),
			DPID:        interfaceA.Switch().DPID(),
			PortNumbers: [2]int{interfaceA.PortNumber(), interfaceB.PortNumber()},
		},
	})
}

// publishLoopActions publishes one loop.action.<kind> event per
// configured mitigation action.
func (m *Manager) publishLoopActions(interfaceA, interfaceB *topology.Interface) {
	for _, action := range m.actions {
		m.pub.Publish(event.Event{
			Name: event.LoopActionPrefix + action,
			Content: event.LoopAction{
				InterfaceA: interfaceA,
				InterfaceB: interfaceB,
			},
		})
	}
}

// -------------------------------------------------------------------------
// Stopped-Loop Lifecycle
// -------------------------------------------------------------------------

// HasLoopStopped checks whether a detected loop should be considered
// stopped: either endpoint interface is inactive, or the record has not
// been refreshed within the stopped interval. ok is false when no record
// exists or the switch/interface lookup fails.
func (m *Manager) HasLoopStopped(dpid string, pair PortPair) (stopped, ok bool) {
	m.mu.Lock()
	rec, recOK := m.records[recordKey{dpid: dpid, pair: pair}]
	var updatedAt time.Time
	if recOK {
		updatedAt = rec.UpdatedAt
	}
	m.mu.Unlock()

	if !recOK {
		return false, false
	}

	sw, swOK := m.registry.Switch(dpid)
	if !swOK {
		return false, false
	}
	intfA, aOK := sw.Interface(pair.A)
	intfB, bOK := sw.Interface(pair.B)
	if !aOK || !bOK {
		return false, false
	}

	if !intfA.Active() || !intfB.Active() {
		return true, true
	}
	if m.clock.Now().Sub(updatedAt) > m.stoppedInterval {
		return true, true
	}
	return false, true
}

// GetStoppedLoops sweeps all detected-state records and returns, per
// dpid, the port pairs whose loops have stopped.
func (m *Manager) GetStoppedLoops() map[string][]PortPair {
	m.mu.Lock()
	detected := make([]recordKey, 0, len(m.records))
	for key, rec := range m.records {
		if rec.State == StateDetected {
			detected = append(detected, key)
		}
	}
	m.mu.Unlock()

	stopped := make(map[string][]PortPair)
	for _, key := range detected {
		if s, ok := m.HasLoopStopped(key.dpid, key.pair); ok && s {
			stopped[key.dpid] = append(stopped[key.dpid], key.pair)
		}
	}
	return stopped
}

// PublishStoppedLoops runs the stopped-loop sweep and publishes a
// loop.stopped event for every affected pair. A stale switch or
// interface reference is logged and skipped; it never aborts the sweep.
func (m *Manager) PublishStoppedLoops() {
	for dpid, pairs := range m.GetStoppedLoops() {
		sw, ok := m.registry.Switch(dpid)
		if !ok {
			m.logger.Error("stopped-loop sweep: switch not found",
				slog.String("dpid", dpid),
			)
			continue
		}
		for _, pair := range pairs {
			intfA, aOK := sw.Interface(pair.A)
			intfB, bOK := sw.Interface(pair.B)
			if !aOK || !bOK {
				m.logger.Error("stopped-loop sweep: interface not found",
					slog.String("dpid", dpid),
					slog.Int("port_a", pair.A),
					slog.Int("port_b", pair.B),
				)
				continue
			}
			m.PublishLoopState(intfA, intfB, StateStopped)
		}
	}
}

// HandleLoopStopped transitions the pair's record to stopped, removes
// the looped metadata from the reporting interface, and applies the
// configured actions. The control-endpoint call happens outside the lock
// and its failure does not roll back the record transition.
func (m *Manager) HandleLoopStopped(
	ctx context.Context,
	interfaceA, interfaceB *topology.Interface,
) {
	dpid := interfaceA.Switch().DPID()
	portA := interfaceA.PortNumber()
	portB := interfaceB.PortNumber()
	key := recordKey{dpid: dpid, pair: PortPair{A: portA, B: portB}}

	m.mu.Lock()
	rec, ok := m.records[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	rec.State = StateStopped
	rec.UpdatedAt = now
	rec.StoppedAt = now
	if !interfaceA.RemoveMetadata(LoopedMetadataKey) {
		m.logger.Error("failed to delete looped metadata",
			slog.String("interface_id", interfaceA.ID()),
		)
	}
	m.mu.Unlock()

	m.metrics.IncLoopStopped(dpid)

	if m.hasAction(ActionLog) {
		m.logger.Info("loop stopped",
			slog.String("dpid", dpid),
			slog.String("interface_a", interfaceA.Name()),
			slog.String("interface_b", interfaceB.Name()),
			slog.Int("port_a", portA),
			slog.Int("port_b", portB),
		)
	}

	if m.hasAction(ActionDisable) {
		// The disable action shut the interface down while the loop was
		// live; re-enable it now that the loop is gone. Re-enabling an
		// already enabled interface is not an error on the remote side.
		if err := m.control.EnableInterface(ctx, interfaceA.ID()); err != nil {
			m.logger.Error("failed to enable interface",
				slog.String("interface_id", interfaceA.ID()),
				slog.String("error", err.Error()),
			)
		} else {
			m.logger.Info("loop mitigation re-enabled interface",
				slog.String("interface_id", interfaceA.ID()),
				slog.Int("port_a", portA),
				slog.Int("port_b", portB),
			)
		}
	}
}

// -------------------------------------------------------------------------
// Mitigation Actions
// -------------------------------------------------------------------------

// HandleLogAction emits a warning for a persistent loop, debounced to one
// line per logEvery occurrences of the same pair.
func (m *Manager) HandleLogAction(interfaceA, interfaceB *topology.Interface) {
	dpid := interfaceA.Switch().DPID()
	portA := interfaceA.PortNumber()
	portB := interfaceB.PortNumber()
	key := recordKey{dpid: dpid, pair: PortPair{A: portA, B: portB}}

	m.mu.Lock()
	if _, ok := m.counters[key]; !ok {
		m.counters[key] = 0
	} else {
		m.counters[key] = (m.counters[key] + 1) % m.logEvery
	}
	count := m.counters[key]
	m.mu.Unlock()

	if count != 0 {
		return
	}

	m.logger.Warn("loop detected",
		slog.String("dpid", dpid),
		slog.String("interface_a", interfaceA.Name()),
		slog.String("interface_b", interfaceB.Name()),
		slog.Int("port_a", portA),
		slog.Int("port_b", portB),
	)
}

// HandleDisableAction administratively disables the reporting interface
// via the control endpoint. A no-op when the interface is already
// disabled.
func (m *Manager) HandleDisableAction(
	ctx context.Context,
	interfaceA, interfaceB *topology.Interface,
) {
	if !interfaceA.Enabled() {
		return
	}

	if err := m.control.DisableInterface(ctx, interfaceA.ID()); err != nil {
		m.logger.Error("failed to disable interface",
			slog.String("interface_id", interfaceA.ID()),
			slog.String("error", err.Error()),
		)
		return
	}

	m.logger.Info("loop mitigation disabled interface",
		slog.String("interface_id", interfaceA.ID()),
		slog.String("interface_a", interfaceA.Name()),
		slog.String("interface_b", interfaceB.Name()),
		slog.Int("port_a", interfaceA.PortNumber()),
		slog.Int("port_b", interfaceB.PortNumber()),
	)
}

func (m *Manager) hasAction(action string) bool {
	for _, a := range m.actions {
		if a == action {
			return true
		}
	}
	return false
}

// -------------------------------------------------------------------------
// Ignore-List Maintenance
// -------------------------------------------------------------------------

// HandleSwitchMetadataChanged reloads the switch's ignore list from its
// metadata. A switch without the ignored_loops key has its ignore entry
// cleared.
func (m *Manager) HandleSwitchMetadataChanged(sw *topology.Switch) {
	if _, ok := sw.MetadataValue(IgnoredLoopsMetadataKey); !ok {
		m.mu.Lock()
		delete(m.ignored, sw.DPID())
		m.mu.Unlock()
		return
	}
	m.TryToLoadIgnoredSwitch(sw)
}

// TryToLoadIgnoredSwitch replaces the switch's ignore list wholesale
// with the valid pair entries found in its metadata. Non-list metadata
// is ignored; invalid entries inside an otherwise valid list are
// silently skipped.
func (m *Manager) TryToLoadIgnoredSwitch(sw *topology.Switch) {
	v, ok := sw.MetadataValue(IgnoredLoopsMetadataKey)
	if !ok {
		return
	}
	pairs, ok := portPairsFromMetadata(v)
	if !ok {
		return
	}

	m.mu.Lock()
	m.ignored[sw.DPID()] = pairs
	m.mu.Unlock()
}

// HandleTopologyLoaded re-applies the ignore-list load for every switch
// in the registry. This is the bootstrap path after a controller restart.
func (m *Manager) HandleTopologyLoaded() {
	for _, sw := range m.registry.Switches() {
		m.TryToLoadIgnoredSwitch(sw)
	}
}

// portPairsFromMetadata coerces an ignored_loops metadata value into
// port pairs. Returns ok=false when the value is not a list at all.
func portPairsFromMetadata(v any) ([]PortPair, bool) {
	switch list := v.(type) {
	case []PortPair:
		return append([]PortPair(nil), list...), true
	case [][]int:
		pairs := make([]PortPair, 0, len(list))
		for _, e := range list {
			if len(e) >= 2 {
				pairs = append(pairs, PortPair{A: e[0], B: e[1]})
			}
		}
		return pairs, true
	case []any:
		pairs := make([]PortPair, 0, len(list))
		for _, e := range list {
			if p, ok := entryToPortPair(e); ok {
				pairs = append(pairs, p)
			}
		}
		return pairs, true
	default:
		return nil, false
	}
}

// entryToPortPair coerces one ignore-list entry. JSON-decoded metadata
// carries numbers as float64; YAML as int.
func entryToPortPair(v any) (PortPair, bool) {
	switch e := v.(type) {
	case PortPair:
		return e, true
	case []int:
		if len(e) >= 2 {
			return PortPair{A: e[0], B: e[1]}, true
		}
	case []any:
		if len(e) >= 2 {
			a, aOK := toInt(e[0])
			b, bOK := toInt(e[1])
			if aOK && bOK {
				return PortPair{A: a, B: b}, true
			}
		}
	}
	return PortPair{}, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// -------------------------------------------------------------------------
// Record Snapshots
// -------------------------------------------------------------------------

// Records returns a read-only copy of every loop record.
func (m *Manager) Records() []RecordView {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]RecordView, 0, len(m.records))
	for key, rec := range m.records {
		views = append(views, RecordView{
			DPID:        key.dpid,
			PortNumbers: rec.PortNumbers,
			State:       rec.State,
			DetectedAt:  rec.DetectedAt,
			UpdatedAt:   rec.UpdatedAt,
			StoppedAt:   rec.StoppedAt,
		})
	}
	return views
}
