package guard

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/pickup/internal/order"
)

// Callback receives whole-record snapshots.
type Callback func(order.Order)

// Source is the realtime record feed a guard wraps.
//
// Subscribe starts delivering snapshots for key to fn and returns the func
// that stops them. fn must not be invoked before Subscribe returns, and each
// delivery must be a complete record, never a partial delta.
type Source interface {
	Subscribe(key string, fn func(order.Order)) (func(), error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(key string, fn func(order.Order)) (func(), error)

func (f SourceFunc) Subscribe(key string, fn func(order.Order)) (func(), error) {
	return f(key, fn)
}

// Subscription lifecycle events reported to an Observer.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventFailed       = "failed"
)

// Observer is told about every subscription lifecycle change.
type Observer interface {
	ObserveSubscription(key, event string)
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the guard logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithObserver registers a lifecycle observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(g *Guard) {
		g.observer = o
	}
}

// Guard keeps at most one live subscription to a Source for one key.
//
// All liveness transitions are serialized by mu. Deliveries are tagged with
// the generation of the subscription that produced them and dropped once that
// generation is no longer current, so a late delivery after Stop or Release
// never reaches the callback. A delivery already in progress may complete.
type Guard struct {
	id       string
	key      string
	src      Source
	cb       Callback
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	live     bool
	released bool
	unsub    func()
	gen      uint64

	// current is the generation allowed to deliver; 0 means none.
	current atomic.Uint64
}

// New creates a guard for key. It does not subscribe until Start.
func New(key string, src Source, cb Callback, opts ...Option) *Guard {
	g := &Guard{
		id:     uuid.Must(uuid.NewV7()).String(),
		key:    key,
		src:    src,
		cb:     cb,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("guard", g.id, "key", key)
	return g
}

// Key returns the logical key this guard owns.
func (g *Guard) Key() string {
	return g.key
}

// Live reports whether a subscription is currently established.
func (g *Guard) Live() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.live
}

// Start subscribes if not already live. Calling it while live is a no-op.
// A source failure is returned as *TransportError and the guard stays not live.
func (g *Guard) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	return g.startLocked()
}

// Stop tears down the subscription if live. Calling it while not live is a no-op.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

// Release tears down any live subscription and makes the guard permanently
// inert. It is idempotent and safe from any goroutine.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}
	g.stopLocked()
	g.released = true
	g.logger.Debug("guard released")
}

// Released reports whether Release has been called.
func (g *Guard) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

func (g *Guard) startLocked() error {
	if g.live {
		return nil
	}

	g.gen++
	gen := g.gen
	g.current.Store(gen)

	unsub, err := g.src.Subscribe(g.key, func(o order.Order) {
		g.deliver(gen, o)
	})
	if err != nil {
		g.current.Store(0)
		g.logger.Warn("subscribe failed", "error", err)
		g.observe(EventFailed)
		return &TransportError{Key: g.key, Err: err}
	}

	g.live = true
	g.unsub = unsub
	g.logger.Debug("subscribed", "generation", gen)
	g.observe(EventSubscribed)
	return nil
}

func (g *Guard) stopLocked() {
	if !g.live {
		return
	}
	g.current.Store(0)
	unsub := g.unsub
	g.unsub = nil
	g.live = false

	if unsub != nil {
		unsub()
	}
	g.logger.Debug("unsubscribed")
	g.observe(EventUnsubscribed)
}

func (g *Guard) deliver(gen uint64, o order.Order) {
	if g.current.Load() != gen {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("subscription callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	g.cb(o)
}

func (g *Guard) observe(event string) {
	if g.observer != nil {
		g.observer.ObserveSubscription(g.key, event)
	}
}
