package guard

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/pickup/internal/order"
)

var errTransport = errors.New("connection refused")

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeSource records subscriptions and lets tests push snapshots by hand.
type fakeSource struct {
	mu         sync.Mutex
	subs       map[int]fakeSub
	next       int
	subscribes int
	fail       error
}

type fakeSub struct {
	key string
	fn  func(order.Order)
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[int]fakeSub)}
}

func (s *fakeSource) Subscribe(key string, fn func(order.Order)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return nil, s.fail
	}
	s.next++
	id := s.next
	s.subscribes++
	s.subs[id] = fakeSub{key: key, fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}, nil
}

func (s *fakeSource) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// live returns the number of open subscriptions for key.
func (s *fakeSource) live(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.key == key {
			n++
		}
	}
	return n
}

func (s *fakeSource) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// handlers snapshots the delivery funcs of open subscriptions for key.
func (s *fakeSource) handlers(key string) []func(order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []func(order.Order)
	for _, sub := range s.subs {
		if sub.key == key {
			out = append(out, sub.fn)
		}
	}
	return out
}

// push delivers o to every open subscription for key.
func (s *fakeSource) push(key string, o order.Order) {
	for _, fn := range s.handlers(key) {
		fn(o)
	}
}

type recorder struct {
	mu  sync.Mutex
	got []order.Order
}

func (r *recorder) callback(o order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, o)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) ObserveSubscription(key, event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, key+":"+event)
}

func (e *eventLog) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}
