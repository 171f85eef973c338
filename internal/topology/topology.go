// Package topology holds the switch, interface, and link records the
// monitoring engine operates on, plus the registry that indexes them.
//
// These are deliberately thin: the controller owning the real topology is
// an external collaborator, and this package only models the accessors the
// liveness and loop engines consume. All records are safe for concurrent
// use; metadata maps are guarded per record.
package topology

import (
	"fmt"
	"sync"
)

// -------------------------------------------------------------------------
// Operational Status
// -------------------------------------------------------------------------

// Status is the externally observed operational status of an entity
// (interface or link), derived from its active and enabled flags.
type Status uint8

const (
	// StatusDown indicates the entity is administratively disabled or
	// not operationally active.
	StatusDown Status = iota

	// StatusUp indicates the entity is both enabled and active.
	StatusUp
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	if s == StatusUp {
		return "UP"
	}
	return "DOWN"
}

// -------------------------------------------------------------------------
// Interface
// -------------------------------------------------------------------------

// Interface is a switch port as seen by the monitoring engine.
//
// The ID is "<dpid>:<port>", matching the identifier scheme used by the
// rest of the controller. IDs are totally ordered by byte-wise string
// comparison; the liveness pair canonicalization relies on that order.
type Interface struct {
	id         string
	name       string
	portNumber int
	sw         *Switch

	mu       sync.RWMutex
	lldp     bool
	active   bool
	enabled  bool
	metadata map[string]any
}

// NewInterface creates an interface record attached to sw. The interface
// starts enabled, active, and with LLDP probing on; callers flip the flags
// to mirror the controller's view.
func NewInterface(sw *Switch, portNumber int, name string) *Interface {
	intf := &Interface{
		id:         fmt.Sprintf("%s:%d", sw.DPID(), portNumber),
		name:       name,
		portNumber: portNumber,
		sw:         sw,
		lldp:       true,
		active:     true,
		enabled:    true,
		metadata:   make(map[string]any),
	}
	return intf
}

// ID returns the interface identifier ("<dpid>:<port>").
func (i *Interface) ID() string { return i.id }

// Name returns the interface name (e.g., "eth1").
func (i *Interface) Name() string { return i.name }

// PortNumber returns the switch-local port number.
func (i *Interface) PortNumber() int { return i.portNumber }

// Switch returns the switch this interface belongs to.
func (i *Interface) Switch() *Switch { return i.sw }

// LLDP reports whether LLDP probing is active on this interface.
func (i *Interface) LLDP() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lldp
}

// SetLLDP toggles LLDP probing on this interface.
func (i *Interface) SetLLDP(on bool) {
	i.mu.Lock()
	i.lldp = on
	i.mu.Unlock()
}

// Active reports whether the interface is operationally active (link up).
func (i *Interface) Active() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.active
}

// SetActive sets the operational state of the interface.
func (i *Interface) SetActive(active bool) {
	i.mu.Lock()
	i.active = active
	i.mu.Unlock()
}

// Enabled reports whether the interface is administratively enabled.
func (i *Interface) Enabled() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enabled
}

// SetEnabled sets the administrative state of the interface.
func (i *Interface) SetEnabled(enabled bool) {
	i.mu.Lock()
	i.enabled = enabled
	i.mu.Unlock()
}

// Status returns the operational status: StatusUp iff the interface is
// both administratively enabled and operationally active.
func (i *Interface) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.active && i.enabled {
		return StatusUp
	}
	return StatusDown
}

// ExtendMetadata merges the given key/value pairs into the interface
// metadata, overwriting existing keys.
func (i *Interface) ExtendMetadata(md map[string]any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, v := range md {
		i.metadata[k] = v
	}
}

// RemoveMetadata deletes the given metadata key. Reports whether the key
// was present.
func (i *Interface) RemoveMetadata(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.metadata[key]
	delete(i.metadata, key)
	return ok
}

// MetadataValue returns the value stored under key.
func (i *Interface) MetadataValue(key string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.metadata[key]
	return v, ok
}

// Metadata returns a shallow copy of the interface metadata.
func (i *Interface) Metadata() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	md := make(map[string]any, len(i.metadata))
	for k, v := range i.metadata {
		md[k] = v
	}
	return md
}

// -------------------------------------------------------------------------
// Switch
// -------------------------------------------------------------------------

// Switch is a datapath as seen by the monitoring engine, indexed by dpid.
type Switch struct {
	dpid string

	mu         sync.RWMutex
	connected  bool
	interfaces map[int]*Interface
	metadata   map[string]any
}

// NewSwitch creates a switch record for the given dpid. The switch starts
// connected; callers flip the flag to mirror the controller's view.
func NewSwitch(dpid string) *Switch {
	return &Switch{
		dpid:       dpid,
		connected:  true,
		interfaces: make(map[int]*Interface),
		metadata:   make(map[string]any),
	}
}

// DPID returns the datapath identifier.
func (s *Switch) DPID() string { return s.dpid }

// Connected reports whether the switch currently has a control connection.
func (s *Switch) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetConnected sets the control-connection state.
func (s *Switch) SetConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// AddInterface registers an interface under its port number.
func (s *Switch) AddInterface(intf *Interface) {
	s.mu.Lock()
	s.interfaces[intf.PortNumber()] = intf
	s.mu.Unlock()
}

// RemoveInterface drops the interface registered under the given port.
func (s *Switch) RemoveInterface(portNumber int) {
	s.mu.Lock()
	delete(s.interfaces, portNumber)
	s.mu.Unlock()
}

// Interface returns the interface registered under the given port number.
func (s *Switch) Interface(portNumber int) (*Interface, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intf, ok := s.interfaces[portNumber]
	return intf, ok
}

// Interfaces returns a snapshot of all interfaces on this switch.
func (s *Switch) Interfaces() []*Interface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intfs := make([]*Interface, 0, len(s.interfaces))
	for _, intf := range s.interfaces {
		intfs = append(intfs, intf)
	}
	return intfs
}

// ExtendMetadata merges the given key/value pairs into the switch metadata.
func (s *Switch) ExtendMetadata(md map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range md {
		s.metadata[k] = v
	}
}

// RemoveMetadata deletes the given metadata key. Reports whether the key
// was present.
func (s *Switch) RemoveMetadata(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.metadata[key]
	delete(s.metadata, key)
	return ok
}

// MetadataValue returns the value stored under key.
func (s *Switch) MetadataValue(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// -------------------------------------------------------------------------
// Link
// -------------------------------------------------------------------------

// Link is an inter-switch link record. The liveness engine does not own
// links; it only inspects them through the link-status hooks, reading the
// "liveness_status" metadata key written by the topology owner.
type Link struct {
	id string

	mu       sync.RWMutex
	active   bool
	enabled  bool
	metadata map[string]any
}

// NewLink creates a link record. The link starts enabled and active.
func NewLink(id string) *Link {
	return &Link{
		id:       id,
		active:   true,
		enabled:  true,
		metadata: make(map[string]any),
	}
}

// ID returns the link identifier.
func (l *Link) ID() string { return l.id }

// Active reports whether the link is operationally active.
func (l *Link) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// SetActive sets the operational state of the link.
func (l *Link) SetActive(active bool) {
	l.mu.Lock()
	l.active = active
	l.mu.Unlock()
}

// Enabled reports whether the link is administratively enabled.
func (l *Link) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled sets the administrative state of the link.
func (l *Link) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// ExtendMetadata merges the given key/value pairs into the link metadata.
func (l *Link) ExtendMetadata(md map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range md {
		l.metadata[k] = v
	}
}

// MetadataValue returns the value stored under key.
func (l *Link) MetadataValue(key string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.metadata[key]
	return v, ok
}

// -------------------------------------------------------------------------
// Registry
// -------------------------------------------------------------------------

// Registry indexes the switches (and through them, the interfaces) known
// to the monitoring engine. It is the local mirror of the controller's
// topology snapshot.
type Registry struct {
	mu       sync.RWMutex
	switches map[string]*Switch
}

// NewRegistry creates an empty topology registry.
func NewRegistry() *Registry {
	return &Registry{switches: make(map[string]*Switch)}
}

// AddSwitch registers a switch under its dpid, replacing any previous
// record for the same dpid.
func (r *Registry) AddSwitch(sw *Switch) {
	r.mu.Lock()
	r.switches[sw.DPID()] = sw
	r.mu.Unlock()
}

// RemoveSwitch drops the switch registered under the given dpid.
func (r *Registry) RemoveSwitch(dpid string) {
	r.mu.Lock()
	delete(r.switches, dpid)
	r.mu.Unlock()
}

// Switch returns the switch registered under the given dpid.
func (r *Registry) Switch(dpid string) (*Switch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sw, ok := r.switches[dpid]
	return sw, ok
}

// Switches returns a snapshot of all registered switches.
func (r *Registry) Switches() []*Switch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sws := make([]*Switch, 0, len(r.switches))
	for _, sw := range r.switches {
		sws = append(sws, sw)
	}
	return sws
}

// Interfaces returns a snapshot of every interface on every registered
// switch.
func (r *Registry) Interfaces() []*Interface {
	r.mu.RLock()
	sws := make([]*Switch, 0, len(r.switches))
	for _, sw := range r.switches {
		sws = append(sws, sw)
	}
	r.mu.RUnlock()

	var intfs []*Interface
	for _, sw := range sws {
		intfs = append(intfs, sw.Interfaces()...)
	}
	return intfs
}

// InterfaceByID resolves an interface by its "<dpid>:<port>" identifier.
func (r *Registry) InterfaceByID(id string) (*Interface, bool) {
	for _, intf := range r.Interfaces() {
		if intf.ID() == id {
			return intf, true
		}
	}
	return nil, false
}
