package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nettrail/linkwatch/internal/event"
	"github.com/nettrail/linkwatch/internal/liveness"
	"github.com/nettrail/linkwatch/internal/loop"
	"github.com/nettrail/linkwatch/internal/topology"
)

// runDispatch consumes the event bus and routes each event to the
// interested engine. Neighbor observations fan out to both the liveness
// and the loop engines; loop lifecycle and action events are handled by
// the loop engine alone.
func runDispatch(
	ctx context.Context,
	events <-chan event.Event,
	live *liveness.Manager,
	loops *loop.Manager,
	registry *topology.Registry,
	logger *slog.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			handleEvent(ctx, ev, live, loops, registry, logger)
		}
	}
}

func handleEvent(
	ctx context.Context,
	ev event.Event,
	live *liveness.Manager,
	loops *loop.Manager,
	registry *topology.Registry,
	logger *slog.Logger,
) {
	switch {
	case ev.Name == event.NeighborDiscovered:
		n, ok := ev.Content.(event.Neighbor)
		if !ok {
			logger.Warn("malformed neighbor event payload")
			return
		}
		live.ConsumeHelloIfEnabled(n.InterfaceA, n.InterfaceB)
		loops.ProcessIfLooped(n.InterfaceA, n.InterfaceB)

	case ev.Name == event.LoopStopped:
		st, ok := ev.Content.(event.LoopState)
		if !ok {
			logger.Warn("malformed loop-stopped event payload")
			return
		}
		intfA, intfB, ok := resolvePair(registry, st)
		if !ok {
			logger.Error("loop-stopped event references unknown interfaces",
				slog.String("dpid", st.DPID),
				slog.Int("port_a", st.PortNumbers[0]),
				slog.Int("port_b", st.PortNumbers[1]),
			)
			return
		}
		loops.HandleLoopStopped(ctx, intfA, intfB)

	case strings.HasPrefix(ev.Name, event.LoopActionPrefix):
		action, ok := ev.Content.(event.LoopAction)
		if !ok {
			logger.Warn("malformed loop-action event payload",
				slog.String("event", ev.Name),
			)
			return
		}
		switch strings.TrimPrefix(ev.Name, event.LoopActionPrefix) {
		case loop.ActionLog:
			loops.HandleLogAction(action.InterfaceA, action.InterfaceB)
		case loop.ActionDisable:
			loops.HandleDisableAction(ctx, action.InterfaceA, action.InterfaceB)
		}

	case strings.HasPrefix(ev.Name, event.LivenessPrefix):
		// Transition and admin events are for external consumers; the
		// daemon only logs them.
		logger.Debug("liveness event", slog.String("event", ev.Name))
	}
}

// resolvePair maps a LoopState payload back to interface records.
func resolvePair(registry *topology.Registry, st event.LoopState) (*topology.Interface, *topology.Interface, bool) {
	sw, ok := registry.Switch(st.DPID)
	if !ok {
		return nil, nil, false
	}
	intfA, okA := sw.Interface(st.PortNumbers[0])
	intfB, okB := sw.Interface(st.PortNumbers[1])
	if !okA || !okB {
		return nil, nil, false
	}
	return intfA, intfB, true
}
