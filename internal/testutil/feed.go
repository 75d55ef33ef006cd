package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/pickup/internal/order"
)

// MemoryFeed is an in-memory order feed and lookup for tests.
//
// Put stores the snapshot and delivers it synchronously to every subscriber
// of that order on the calling goroutine, which keeps tests deterministic.
// Subscribe never delivers on its own, so the first delivery is always the
// next Put. Fail makes subsequent Subscribe and Get calls return err.
type MemoryFeed struct {
	mu         sync.Mutex
	orders     map[string]order.Order
	subs       map[string]map[int]func(order.Order)
	next       int
	subscribes int
	fail       error
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		orders: make(map[string]order.Order),
		subs:   make(map[string]map[int]func(order.Order)),
	}
}

// Put stores o and delivers it to subscribers of o.ID.
func (f *MemoryFeed) Put(o order.Order) {
	f.mu.Lock()
	f.orders[o.ID] = o
	fns := make([]func(order.Order), 0, len(f.subs[o.ID]))
	for id := 1; id <= f.next; id++ {
		if fn, ok := f.subs[o.ID][id]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(o)
	}
}

// Get implements order.Lookup.
func (f *MemoryFeed) Get(_ context.Context, id string) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return order.Order{}, f.fail
	}
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s: %w", id, order.ErrNotFound)
	}
	return o, nil
}

// Subscribe implements guard.Source.
func (f *MemoryFeed) Subscribe(key string, fn func(order.Order)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.next++
	id := f.next
	f.subscribes++
	set, ok := f.subs[key]
	if !ok {
		set = make(map[int]func(order.Order))
		f.subs[key] = set
	}
	set[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[key], id)
			if len(f.subs[key]) == 0 {
				delete(f.subs, key)
			}
		})
	}, nil
}

// Fail makes later Subscribe and Get calls return err. Pass nil to recover.
func (f *MemoryFeed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

// Live returns the number of open subscriptions for key.
func (f *MemoryFeed) Live(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[key])
}

// Subscribes returns how many subscriptions were ever opened.
func (f *MemoryFeed) Subscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}
