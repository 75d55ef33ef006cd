package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/pickup/internal/order"
)

// ErrRegistryClosed is returned by Watch after Close.
var ErrRegistryClosed = errors.New("guard: registry closed")

// Registry shares one guard per key between any number of watchers.
//
// The first watcher of a key starts its guard; when the last watcher leaves
// the guard is released and forgotten. Guard creation, start and release all
// happen under the registry lock, so two guards for the same key never overlap.
type Registry struct {
	src    Source
	opts   []Option
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	guard *Guard

	mu       sync.RWMutex
	watchers map[uint64]Callback
	next     uint64
}

// NewRegistry creates a registry over src. opts are applied to every guard.
func NewRegistry(src Source, opts ...Option) *Registry {
	r := &Registry{
		src:     src,
		opts:    opts,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
	}
	probe := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}
	r.logger = probe.logger
	return r
}

// Watch attaches cb to the shared feed for key and returns a cancel handle.
// The cancel handle is idempotent. If the feed cannot be established the
// watcher is not attached and the transport error is returned.
func (r *Registry) Watch(key string, cb Callback) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	e, ok := r.entries[key]
	if !ok {
		e = &entry{watchers: make(map[uint64]Callback)}
		e.guard = New(key, r.src, e.dispatch(r.logger), r.opts...)
		r.entries[key] = e
	}

	e.mu.Lock()
	e.next++
	id := e.next
	e.watchers[id] = cb
	e.mu.Unlock()

	if err := e.guard.Start(); err != nil {
		r.detachLocked(key, e, id)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.detachLocked(key, e, id)
		})
	}, nil
}

// Live reports whether key currently has a live subscription.
func (r *Registry) Live(key string) bool {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	return ok && e.guard.Live()
}

// Keys returns the keys with at least one watcher, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Watchers returns the number of watchers attached to key.
func (r *Registry) Watchers(key string) int {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.watchers)
}

// Close releases every guard and rejects further watchers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for key, e := range r.entries {
		e.guard.Release()
		delete(r.entries, key)
	}
}

// detachLocked removes watcher id and releases the guard when it was the last.
// The entry is only removed if it is still the one registered for key.
func (r *Registry) detachLocked(key string, e *entry, id uint64) {
	e.mu.Lock()
	delete(e.watchers, id)
	remaining := len(e.watchers)
	e.mu.Unlock()

	if remaining > 0 {
		return
	}
	e.guard.Release()
	if cur, ok := r.entries[key]; ok && cur == e {
		delete(r.entries, key)
	}
}

// dispatch fans a snapshot out to every watcher. A panicking watcher is logged
// and the rest still receive the snapshot.
func (e *entry) dispatch(logger *slog.Logger) Callback {
	return func(o order.Order) {
		e.mu.RLock()
		ids := make([]uint64, 0, len(e.watchers))
		for id := range e.watchers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		cbs := make([]Callback, len(ids))
		for i, id := range ids {
			cbs[i] = e.watchers[id]
		}
		e.mu.RUnlock()

		for _, cb := range cbs {
			safeCall(logger, cb, o)
		}
	}
}

func safeCall(logger *slog.Logger, cb Callback, o order.Order) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("watcher panicked", "order", o.ID, "panic", fmt.Sprint(r))
		}
	}()
	cb(o)
}
