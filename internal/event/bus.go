// Package event provides the in-process publish/subscribe transport the
// liveness and loop engines emit through.
//
// The bus is a thin fan-out over buffered channels: publishing never
// blocks the producing goroutine. A subscriber that falls behind loses
// events (logged at warn level) rather than stalling hello consumption
// or loop detection.
package event

import (
	"log/slog"
	"sync"

	"github.com/nettrail/linkwatch/internal/topology"
)

// -------------------------------------------------------------------------
// Event Names
// -------------------------------------------------------------------------

// Event name constants. Liveness state events are composed as
// LivenessPrefix + state name ("up", "down", "init"); loop action events
// as LoopActionPrefix + action name ("log", "disable").
const (
	// NeighborDiscovered carries a Neighbor payload: two interfaces
	// observed to see each other via LLDP.
	NeighborDiscovered = "linkwatch.discovery.neighbor"

	// LivenessPrefix prefixes link-liveness transition events.
	LivenessPrefix = "linkwatch.liveness."

	// LoopDetected carries a LoopState payload for a newly flagged loop.
	LoopDetected = "linkwatch.loop.detected"

	// LoopStopped carries a LoopState payload for a loop that stopped.
	LoopStopped = "linkwatch.loop.stopped"

	// LoopActionPrefix prefixes loop mitigation action events.
	LoopActionPrefix = "linkwatch.loop.action."

	// LivenessEnabled and LivenessDisabled carry a LivenessAdmin payload
	// when liveness tracking is administratively toggled.
	LivenessEnabled  = LivenessPrefix + "enabled"
	LivenessDisabled = LivenessPrefix + "disabled"
)

// -------------------------------------------------------------------------
// Payloads
// -------------------------------------------------------------------------

// Event is a named message with a structured payload. Content is one of
// the payload types below, keyed by the event name.
type Event struct {
	Name    string
	Content any
}

// Neighbor is the payload of NeighborDiscovered events.
type Neighbor struct {
	InterfaceA *topology.Interface
	InterfaceB *topology.Interface
}

// LivenessTransition is the payload of LivenessPrefix+state events.
type LivenessTransition struct {
	InterfaceA *topology.Interface
	InterfaceB *topology.Interface
}

// LivenessAdmin is the payload of LivenessEnabled/LivenessDisabled events.
type LivenessAdmin struct {
	Interfaces []*topology.Interface
}

// LoopState is the payload of LoopDetected and LoopStopped events.
type LoopState struct {
	InterfaceID string
	DPID        string
	PortNumbers [2]int
}

// LoopAction is the payload of LoopActionPrefix+kind events.
type LoopAction struct {
	InterfaceA *topology.Interface
	InterfaceB *topology.Interface
}

// -------------------------------------------------------------------------
// Bus
// -------------------------------------------------------------------------

// subChSize is the buffer size of each subscriber channel. Sized to absorb
// bursts of discovery events (one per packet-in) without blocking the
// publishing goroutine.
const subChSize = 64

// Bus fans events out to all subscribers. Publish is non-blocking; a full
// subscriber channel drops the event for that subscriber only.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
	logger *slog.Logger
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger.With(slog.String("component", "event.bus")),
	}
}

// Subscribe registers a new subscriber and returns its receive channel.
// The channel is closed when the bus is closed.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subChSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers ev to every subscriber without blocking. Subscribers
// with a full channel miss the event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				slog.String("event", ev.Name),
			)
		}
	}
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
