package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/scheduler"
)

// subscriber delivers snapshots for one subscription on its own loop, so
// writers never block on a slow callback and deliveries keep write order.
type subscriber struct {
	fn     func(order.Order)
	loop   *scheduler.Loop
	cancel context.CancelFunc
	active atomic.Bool
}

func (sub *subscriber) post(o order.Order) {
	sub.loop.Post(func() {
		if sub.active.Load() {
			sub.fn(o)
		}
	})
}

func (sub *subscriber) stop() {
	sub.active.Store(false)
	sub.cancel()
	sub.loop.Stop()
}

// Subscribe delivers every future write of key to fn. If the order already
// exists its current snapshot is delivered first. Deliveries happen on a
// dedicated goroutine, never inside Subscribe.
func (s *Store) Subscribe(key string, fn func(order.Order)) (func(), error) {
	if key == "" {
		return nil, fmt.Errorf("subscribe: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	current, err := s.Get(context.Background(), key)
	found := err == nil
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		fn:     fn,
		loop:   scheduler.New(scheduler.WithLogger(s.logger)),
		cancel: cancel,
	}
	sub.active.Store(true)
	go func() {
		_ = sub.loop.Run(ctx)
	}()
	if found {
		sub.post(current)
	}

	s.nextID++
	id := s.nextID
	set, ok := s.subs[key]
	if !ok {
		set = make(map[uint64]*subscriber)
		s.subs[key] = set
	}
	set[id] = sub
	s.logger.Debug("feed subscribed", "order", key, "subscribers", len(set))

	return func() { s.unsubscribe(key, id) }, nil
}

// Subscribers returns the number of open subscriptions for key.
func (s *Store) Subscribers(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[key])
}

func (s *Store) unsubscribe(key string, id uint64) {
	s.mu.Lock()
	set := s.subs[key]
	sub, ok := set[id]
	if ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.subs, key)
		}
	}
	s.mu.Unlock()

	if ok {
		sub.stop()
		s.logger.Debug("feed unsubscribed", "order", key)
	}
}

// publishLocked queues o for every subscriber of o.ID. Caller holds s.mu.
func (s *Store) publishLocked(o order.Order) {
	for _, sub := range s.subs[o.ID] {
		sub.post(o)
	}
}
