package liveness

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nettrail/linkwatch/internal/event"
	"github.com/nettrail/linkwatch/internal/topology"
)

// ErrInvalidMinHellos indicates the configured hello debounce threshold
// is below 1.
var ErrInvalidMinHellos = errors.New("min hellos must be >= 1")

// StatusMetadataKey is the link metadata key the topology owner maintains
// from liveness events; the link-status hooks read it back.
const StatusMetadataKey = "liveness_status"

// Publisher abstracts the outbound event channel. The event bus
// implements it; tests substitute a recording publisher.
type Publisher interface {
	Publish(ev event.Event)
}

// -------------------------------------------------------------------------
// Status Snapshots
// -------------------------------------------------------------------------

// InterfaceStatus is a point-in-time view of one tracked endpoint.
// LastHelloAt is the zero time when no hello has been received.
type InterfaceStatus struct {
	State       State
	LastHelloAt time.Time
}

// EndpointStatus is one side of a PairStatus.
type EndpointStatus struct {
	ID          string
	State       State
	LastHelloAt time.Time
}

// PairStatus is a point-in-time view of one tracked link pair. A is
// always the endpoint with the smaller interface ID.
type PairStatus struct {
	A     EndpointStatus
	B     EndpointStatus
	State State
}

// -------------------------------------------------------------------------
// Manager
// -------------------------------------------------------------------------

// pairEntry is one tracked link pair. a always references the interface
// whose ID is the pair key (the smaller of the two).
type pairEntry struct {
	lsm *LSM
	a   *topology.Interface
	b   *topology.Interface
}

// Manager orchestrates LSM lifecycle keyed by link-pair identity: it
// consumes hello events, runs the periodic reaper, and publishes applied
// link transitions.
//
// All registry access (enabled set, pair table, reverse index) happens
// under a single mutex: hello consumption is a check-then-act sequence
// (look up pair key, conditionally create, mutate) that concurrent
// discovery events would otherwise race on. Event publication happens
// after the lock is released.
type Manager struct {
	mu sync.Mutex

	// enabled maps interface ID -> interface for liveness-enabled
	// interfaces.
	enabled map[string]*topology.Interface

	// pairs maps the pair key (smaller interface ID) -> entry.
	pairs map[string]*pairEntry

	// pairIDs maps each tracked interface ID -> its pair key, for O(1)
	// lookup from either endpoint.
	pairIDs map[string]string

	minHellos int
	clock     clockwork.Clock
	pub       Publisher
	metrics   MetricsReporter
	logger    *slog.Logger
}

// ManagerOption configures optional Manager parameters.
type ManagerOption func(*Manager)

// WithClock sets the clock used for hello timestamps and reaper checks.
// Tests inject a clockwork fake clock.
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

// NewManager creates a liveness manager. minHellos is the per-side hello
// debounce threshold applied to every ILSM the manager creates.
func NewManager(
	minHellos int,
	pub Publisher,
	logger *slog.Logger,
	opts ...ManagerOption,
) (*Manager, error) {
	if minHellos < 1 {
		return nil, ErrInvalidMinHellos
	}

	m := &Manager{
		enabled:   make(map[string]*topology.Interface),
		pairs:     make(map[string]*pairEntry),
		pairIDs:   make(map[string]string),
		minHellos: minHellos,
		clock:     clockwork.NewRealClock(),
		pub:       pub,
		metrics:   noopMetrics{},
		logger:    logger.With(slog.String("component", "liveness.manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// -------------------------------------------------------------------------
// Enablement
// -------------------------------------------------------------------------

// Enable idempotently adds the given interfaces to the liveness-enabled
// set.
func (m *Manager) Enable(interfaces ...*topology.Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, intf := range interfaces {
		m.enabled[intf.ID()] = intf
	}
	m.metrics.SetEnabledInterfaces(len(m.enabled))
}

// Disable removes the given interfaces from the enabled set and purges
// their pair entries. The surviving neighbor of a purged pair loses its
// liveness tracking too: a pair is atomic, and both sides must be
// re-enabled to resume tracking.
func (m *Manager) Disable(interfaces ...*topology.Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, intf := range interfaces {
		id := intf.ID()
		delete(m.enabled, id)
		if key, ok := m.pairIDs[id]; ok {
			delete(m.pairIDs, id)
			delete(m.pairs, key)
		}
	}
	m.metrics.SetEnabledInterfaces(len(m.enabled))
}

// IsEnabled reports whether every given interface is currently enabled.
func (m *Manager) IsEnabled(interfaces ...*topology.Interface) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isEnabledLocked(interfaces...)
}

func (m *Manager) isEnabledLocked(interfaces ...*topology.Interface) bool {
	for _, intf := range interfaces {
		if _, ok := m.enabled[intf.ID()]; !ok {
			return false
		}
	}
	return true
}

// EnabledInterfaceIDs returns a snapshot of the enabled interface IDs.
func (m *Manager) EnabledInterfaceIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.enabled))
	for id := range m.enabled {
		ids = append(ids, id)
	}
	return ids
}

// -------------------------------------------------------------------------
// Hello Consumption
// -------------------------------------------------------------------------

// ConsumeHelloIfEnabled consumes a hello between the two interfaces if
// both have liveness enabled; otherwise it is a no-op. This is the entry
// point invoked from the discovery-event handler and is safe to call
// redundantly.
func (m *Manager) ConsumeHelloIfEnabled(interfaceA, interfaceB *topology.Interface) {
	if !m.IsEnabled(interfaceA, interfaceB) {
		return
	}
	m.ConsumeHello(interfaceA, interfaceB, m.clock.Now())
}

// ConsumeHello feeds a received hello into the pair's state machines and
// publishes the resulting link transition, if any.
//
// The pair is canonicalized by the smaller interface ID: that endpoint
// always occupies the "a" slot. A fresh entry is created on first sight
// of the pair key. When the stored neighbor on the reporting side no
// longer matches the observed one, the stored reference is replaced and
// that side's ILSM is reset to a fresh init machine (topology rewire
// without an explicit disable/enable cycle).
func (m *Manager) ConsumeHello(
	interfaceA, interfaceB *topology.Interface,
	receivedAt time.Time,
) {
	m.mu.Lock()

	key := interfaceA.ID()
	if interfaceB.ID() < key {
		key = interfaceB.ID()
	}
	aIsMin := key == interfaceA.ID()

	entry, ok := m.pairs[key]
	if !ok {
		entry = &pairEntry{
			lsm: NewLSM(NewILSM(m.minHellos), NewILSM(m.minHellos)),
		}
		if aIsMin {
			entry.a, entry.b = interfaceA, interfaceB
		} else {
			entry.a, entry.b = interfaceB, interfaceA
		}
		m.pairs[key] = entry
		m.pairIDs[interfaceA.ID()] = key
		m.pairIDs[interfaceB.ID()] = key
	}

	// The hello is attributed to the reporting side (interfaceA); the
	// opposite slot identifies the neighbor last seen answering there.
	if aIsMin {
		entry.lsm.a.ConsumeHello(receivedAt)
		if entry.b.ID() != interfaceB.ID() {
			// A different neighbor now answers on the b side: the
			// topology connection changed, re-point and restart it.
			entry.b = interfaceB
			entry.lsm.b = NewILSM(m.minHellos)
		}
	} else {
		entry.lsm.b.ConsumeHello(receivedAt)
	}
	m.metrics.IncHellosConsumed(interfaceA.ID())

	prev := entry.lsm.State()
	next, changed := entry.lsm.NextState()

	m.logger.Debug("liveness hello",
		slog.String("interface_a", interfaceA.ID()),
		slog.String("interface_b", interfaceB.ID()),
		slog.String("next_state", next.String()),
		slog.Bool("transitioned", changed),
	)
	m.mu.Unlock()

	m.tryPublishTransition(prev, next, changed, interfaceA, interfaceB)
}

// tryPublishTransition publishes a liveness event for an applied LSM
// transition. Non-transitions are never published.
func (m *Manager) tryPublishTransition(
	from, state State,
	changed bool,
	interfaceA, interfaceB *topology.Interface,
) {
	if !changed {
		return
	}
	m.metrics.RecordLinkTransition(from.String(), state.String())
	m.pub.Publish(event.Event{
		Name: event.LivenessPrefix + state.String(),
		Content: event.LivenessTransition{
			InterfaceA: interfaceA,
			InterfaceB: interfaceB,
		},
	})
}

// -------------------------------------------------------------------------
// Status Queries
// -------------------------------------------------------------------------

// InterfaceStatus returns the liveness status of a single interface.
// ok is false when liveness is not enabled on the interface. An enabled
// interface without a pair entry yet reports StateInit with no hello.
func (m *Manager) InterfaceStatus(interfaceID string) (InterfaceStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.enabled[interfaceID]; !ok {
		return InterfaceStatus{}, false
	}

	if key, ok := m.pairIDs[interfaceID]; ok {
		if entry, ok := m.pairs[key]; ok {
			side := entry.lsm.B()
			if interfaceID == key {
				side = entry.lsm.A()
			}
			return InterfaceStatus{
				State:       side.State(),
				LastHelloAt: side.LastHelloAt(),
			}, true
		}
	}
	return InterfaceStatus{State: StateInit}, true
}

// PairStatuses returns a snapshot of every tracked link pair.
func (m *Manager) PairStatuses() []PairStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := make([]PairStatus, 0, len(m.pairs))
	for _, entry := range m.pairs {
		pairs = append(pairs, PairStatus{
			A: EndpointStatus{
				ID:          entry.a.ID(),
				State:       entry.lsm.A().State(),
				LastHelloAt: entry.lsm.A().LastHelloAt(),
			},
			B: EndpointStatus{
				ID:          entry.b.ID(),
				State:       entry.lsm.B().State(),
				LastHelloAt: entry.lsm.B().LastHelloAt(),
			},
			State: entry.lsm.State(),
		})
	}
	return pairs
}

// -------------------------------------------------------------------------
// Reaper
// -------------------------------------------------------------------------

// ShouldCallReaper reports whether an endpoint participates in reaper
// sweeps: its switch must be connected, LLDP probing must be active, and
// liveness must be enabled on it.
func (m *Manager) ShouldCallReaper(intf *topology.Interface) bool {
	return intf.Switch().Connected() && intf.LLDP() && m.IsEnabled(intf)
}

// Reaper sweeps every tracked pair and ages out sides whose hellos
// stopped arriving. Pairs already down, or with an endpoint excluded by
// ShouldCallReaper, are skipped. The resulting transition is published
// only when both endpoints report an operational up status: a link whose
// physical or admin state already explains the down verdict is left to
// the other signal channels.
func (m *Manager) Reaper(deadInterval time.Duration) {
	now := m.clock.Now()

	type pending struct {
		from, state State
		a, b        *topology.Interface
	}
	var toPublish []pending

	m.mu.Lock()
	for _, entry := range m.pairs {
		if entry.lsm.State() == StateDown {
			continue
		}
		if !m.shouldCallReaperLocked(entry.a) || !m.shouldCallReaperLocked(entry.b) {
			continue
		}

		entry.lsm.A().ReaperCheck(now, deadInterval)
		entry.lsm.B().ReaperCheck(now, deadInterval)
		prev := entry.lsm.State()
		next, changed := entry.lsm.NextState()

		if changed &&
			entry.a.Status() == topology.StatusUp &&
			entry.b.Status() == topology.StatusUp {
			toPublish = append(toPublish, pending{from: prev, state: next, a: entry.a, b: entry.b})
		}
	}
	m.mu.Unlock()

	for _, p := range toPublish {
		m.tryPublishTransition(p.from, p.state, true, p.a, p.b)
	}
	m.metrics.IncReaperRuns()
}

// shouldCallReaperLocked is ShouldCallReaper for callers already holding
// the registry lock.
func (m *Manager) shouldCallReaperLocked(intf *topology.Interface) bool {
	return intf.Switch().Connected() && intf.LLDP() && m.isEnabledLocked(intf)
}

// -------------------------------------------------------------------------
// Link-Status Hooks
// -------------------------------------------------------------------------

// LinkStatusHook is consumed by the external link-status aggregator.
// It returns (StatusDown, true) when the link is otherwise active and
// enabled but its liveness metadata explicitly disagrees; ok is false
// when liveness has no opinion (defer to other signals).
func LinkStatusHook(link *topology.Link) (topology.Status, bool) {
	if !link.Active() || !link.Enabled() {
		return 0, false
	}
	v, ok := link.MetadataValue(StatusMetadataKey)
	if !ok {
		return 0, false
	}
	if s, isStr := v.(string); !isStr || s != StateUp.String() {
		return topology.StatusDown, true
	}
	return 0, false
}

// LinkStatusReasonHook is the companion reason hook: it tags links voted
// down by LinkStatusHook with the "liveness" reason.
func LinkStatusReasonHook(link *topology.Link) []string {
	if _, down := LinkStatusHook(link); down {
		return []string{"liveness"}
	}
	return nil
}
