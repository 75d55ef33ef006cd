package netmon

import (
	"context"

	"github.com/roach88/pickup/internal/scheduler"
)

// Runner feeds a Monitor from its Signal and a staleness ticker.
//
// Transport events and ticks are posted to one scheduler.Loop, so the monitor
// sees them strictly one at a time in arrival order.
type Runner struct {
	mon    *Monitor
	signal Signal
	loop   *scheduler.Loop
}

// NewRunner wires mon to signal through loop. The caller owns loop and must
// run it.
func NewRunner(mon *Monitor, signal Signal, loop *scheduler.Loop) *Runner {
	return &Runner{mon: mon, signal: signal, loop: loop}
}

// Run forwards events and ticks until ctx ends or the loop stops.
// It returns ctx.Err() on cancellation and nil if the loop was stopped.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.loop.Every(ctx, r.mon.CheckInterval(), r.mon.CheckStaleness)

	var events <-chan Event
	if r.signal != nil {
		events = r.signal.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !r.loop.Post(func() { r.mon.HandleTransport(ev) }) {
				return nil
			}
		}
	}
}

// ChanSignal is a Signal backed by a channel, used by the HTTP control
// endpoint and by tests.
type ChanSignal struct {
	online bool
	ch     chan Event
}

// NewChanSignal creates a signal with the given initial state.
func NewChanSignal(online bool) *ChanSignal {
	return &ChanSignal{online: online, ch: make(chan Event, 16)}
}

func (s *ChanSignal) Online() bool {
	return s.online
}

func (s *ChanSignal) Events() <-chan Event {
	return s.ch
}

// Send queues ev. It blocks only if sixteen events are already pending.
func (s *ChanSignal) Send(ctx context.Context, ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
