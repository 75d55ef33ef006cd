package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Status is the coarse connection health shown to the user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusSlow    Status = "slow"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusOnline, StatusSlow, StatusOffline}
}

// Event is a transport-level connectivity change.
type Event string

const (
	EventOnline  Event = "online"
	EventOffline Event = "offline"
)

// ParseEvent maps "online"/"offline" to an Event.
func ParseEvent(s string) (Event, bool) {
	switch Event(s) {
	case EventOnline, EventOffline:
		return Event(s), true
	}
	return "", false
}

// Signal is the platform connectivity signal.
type Signal interface {
	// Online reports the connectivity at construction time.
	Online() bool
	// Events delivers transport changes. It may be nil if the platform
	// never reports changes.
	Events() <-chan Event
}

// Listener receives status changes.
type Listener func(Status)

// Observer is told about every status change, typically a metrics recorder.
type Observer interface {
	ObserveStatus(Status)
}

// Defaults for the staleness check.
const (
	DefaultCheckInterval = time.Second
	DefaultSlowThreshold = 3 * time.Second
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithSlowThreshold sets how long without a successful read counts as slow.
func WithSlowThreshold(d time.Duration) Option {
	return func(m *Monitor) {
		m.slowThreshold = d
	}
}

// WithCheckInterval sets how often a Runner checks staleness.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.checkInterval = d
	}
}

// WithLogger sets the monitor logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// WithObserver registers a status observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		m.observer = o
	}
}

// Monitor tracks connection health from transport events and read freshness.
//
// State changes happen under the monitor lock and queue a notice. Notices are
// delivered one at a time, in the order the changes happened, by whichever
// caller finds the queue idle; concurrent and re-entrant callers only enqueue.
// So a listener is never called concurrently with itself, always ends on the
// current status, and may read Status, drive the monitor or unsubscribe itself
// from inside its callback.
type Monitor struct {
	now           func() time.Time
	slowThreshold time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	observer      Observer

	mu          sync.Mutex
	status      Status
	lastSuccess time.Time
	listeners   map[uint64]*listener
	nextID      uint64
	pending     []notice
	dispatching bool
}

type listener struct {
	fn      Listener
	removed bool
}

// notice is one queued delivery. A change goes to the observer and to the
// listeners registered when it happened; a replay goes to one new listener.
type notice struct {
	status  Status
	prev    Status
	change  bool
	targets []*listener
}

// New creates a Monitor whose initial status comes from signal.Online().
// A nil signal starts online.
func New(signal Signal, opts ...Option) *Monitor {
	m := &Monitor{
		now:           time.Now,
		slowThreshold: DefaultSlowThreshold,
		checkInterval: DefaultCheckInterval,
		logger:        slog.Default(),
		listeners:     make(map[uint64]*listener),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.status = StatusOnline
	if signal != nil && !signal.Online() {
		m.status = StatusOffline
	}
	m.lastSuccess = m.now()
	if m.observer != nil {
		m.observer.ObserveStatus(m.status)
	}
	return m
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CheckInterval returns the configured staleness check interval.
func (m *Monitor) CheckInterval() time.Duration {
	return m.checkInterval
}

// HandleTransport applies a transport event. Going online also restarts the
// staleness clock so a long outage is not reported as slow on reconnect.
func (m *Monitor) HandleTransport(ev Event) {
	switch ev {
	case EventOnline:
		m.transition(func() (Status, bool) {
			m.lastSuccess = m.now()
			return StatusOnline, true
		})
	case EventOffline:
		m.transition(func() (Status, bool) {
			return StatusOffline, true
		})
	default:
		m.logger.Warn("unknown transport event ignored", "event", string(ev))
	}
}

// CheckStaleness marks an online connection slow once no read has succeeded
// for longer than the slow threshold. Offline and slow are left alone.
func (m *Monitor) CheckStaleness() {
	m.transition(func() (Status, bool) {
		if m.status != StatusOnline {
			return "", false
		}
		if m.now().Sub(m.lastSuccess) <= m.slowThreshold {
			return "", false
		}
		return StatusSlow, true
	})
}

// RecordSuccess notes a successful read. A slow connection becomes online.
// It is safe to call from any goroutine.
func (m *Monitor) RecordSuccess() {
	m.transition(func() (Status, bool) {
		m.lastSuccess = m.now()
		if m.status != StatusSlow {
			return "", false
		}
		return StatusOnline, true
	})
}

// OnStatusChange registers l. l first receives the status current at
// registration, then every later change, in order. Unless another goroutine is
// delivering at the time, the first call happens before OnStatusChange
// returns.
//
// The returned func unsubscribes; it is idempotent. Once it returns, l is not
// handed any further notification; one l is already handling may finish.
func (m *Monitor) OnStatusChange(l Listener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	entry := &listener{fn: l}
	m.listeners[id] = entry
	m.pending = append(m.pending, notice{status: m.status, targets: []*listener{entry}})
	m.mu.Unlock()

	m.drain()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entry.removed = true
		delete(m.listeners, id)
	}
}

// Watch streams the current status followed by every change until ctx ends,
// then closes the channel. The channel holds one value; a slow reader sees the
// newest status and misses intermediate ones rather than blocking the monitor.
func (m *Monitor) Watch(ctx context.Context) <-chan Status {
	w := &watcher{ch: make(chan Status, 1)}
	unsubscribe := m.OnStatusChange(w.offer)

	go func() {
		<-ctx.Done()
		unsubscribe()
		w.close()
	}()
	return w.ch
}

// transition runs decide under the lock and, if it reports a change to a
// different status, queues the notice and drains the queue.
func (m *Monitor) transition(decide func() (Status, bool)) {
	m.mu.Lock()
	next, ok := decide()
	if !ok || next == m.status {
		m.mu.Unlock()
		return
	}
	prev := m.status
	m.status = next
	m.pending = append(m.pending, notice{
		status:  next,
		prev:    prev,
		change:  true,
		targets: m.listenersLocked(),
	})
	m.mu.Unlock()

	m.drain()
}

// listenersLocked returns the registered listeners in registration order.
func (m *Monitor) listenersLocked() []*listener {
	ids := make([]uint64, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	targets := make([]*listener, len(ids))
	for i, id := range ids {
		targets[i] = m.listeners[id]
	}
	return targets
}

// drain delivers queued notices unless another caller already is.
func (m *Monitor) drain() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true
	for len(m.pending) > 0 {
		n := m.pending[0]
		m.pending[0] = notice{}
		m.pending = m.pending[1:]
		m.mu.Unlock()
		m.deliver(n)
		m.mu.Lock()
	}
	m.pending = nil
	m.dispatching = false
	m.mu.Unlock()
}

func (m *Monitor) deliver(n notice) {
	if n.change {
		m.logger.Info("network status changed", "from", string(n.prev), "to", string(n.status))
		if m.observer != nil {
			m.safely(n.status, "status observer", func() { m.observer.ObserveStatus(n.status) })
		}
	}
	for _, l := range n.targets {
		m.invoke(l, n.status)
	}
}

func (m *Monitor) invoke(l *listener, s Status) {
	m.mu.Lock()
	if l.removed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.safely(s, "status listener", func() { l.fn(s) })
}

// safely runs fn, logging instead of propagating a panic so the queue keeps
// draining.
func (m *Monitor) safely(s Status, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(what+" panicked", "status", string(s), "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

type watcher struct {
	mu     sync.Mutex
	ch     chan Status
	closed bool
}

func (w *watcher) offer(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for {
		select {
		case w.ch <- s:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}
