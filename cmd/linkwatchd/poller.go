package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errInvalidInterval indicates a non-positive polling interval.
var errInvalidInterval = errors.New("polling interval must be > 0")

// poller owns the periodic tick that drives the liveness reaper and the
// stopped-loop sweep. The interval is adjustable at runtime through the
// REST API; a change takes effect on the next tick.
type poller struct {
	mu       sync.Mutex
	interval time.Duration
	updates  chan time.Duration
}

func newPoller(interval time.Duration) *poller {
	return &poller{
		interval: interval,
		updates:  make(chan time.Duration, 1),
	}
}

// Interval returns the current polling interval.
func (p *poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval updates the polling interval and nudges the run loop to
// reset its ticker.
func (p *poller) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errInvalidInterval
	}

	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()

	// Coalesce: one pending update is enough for the run loop.
	select {
	case p.updates <- d:
	default:
	}
	return nil
}

// run invokes tick every interval until the context is cancelled.
func (p *poller) run(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-p.updates:
			ticker.Reset(d)
		case <-ticker.C:
			tick()
		}
	}
}
