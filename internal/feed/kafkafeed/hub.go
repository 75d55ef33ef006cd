package kafkafeed

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/roach88/pickup/internal/feed"
	"github.com/roach88/pickup/internal/order"
)

// Hub fans consumed snapshots out to per-order subscribers.
//
// One Consumer reads the topic and hands every message to the hub, so any
// number of subscriptions share a single Kafka reader.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[uint64]func(order.Order)
	nextID uint64
}

// NewHub creates an empty hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[uint64]func(order.Order)),
	}
}

// Subscribe implements guard.Source. Deliveries happen on the consumer
// goroutine.
func (h *Hub) Subscribe(key string, fn func(order.Order)) (func(), error) {
	if key == "" {
		return nil, fmt.Errorf("kafka subscribe: empty key")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	set, ok := h.subs[key]
	if !ok {
		set = make(map[uint64]func(order.Order))
		h.subs[key] = set
	}
	set[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(key, id) })
	}, nil
}

// Subscribers returns the number of open subscriptions for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Dispatch delivers o to every subscriber of o.ID in subscription order.
func (h *Hub) Dispatch(o order.Order) {
	h.mu.RLock()
	set := h.subs[o.ID]
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(order.Order), len(ids))
	for i, id := range ids {
		fns[i] = set[id]
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(o)
	}
}

// HandleMessage decodes one Kafka message and dispatches it. A message whose
// key disagrees with the snapshot id is rejected.
func (h *Hub) HandleMessage(m kafka.Message) error {
	o, err := feed.Decode(m.Value)
	if err != nil {
		return fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err)
	}
	if len(m.Key) > 0 && string(m.Key) != o.ID {
		return fmt.Errorf("partition %d offset %d: key %q does not match order %q",
			m.Partition, m.Offset, string(m.Key), o.ID)
	}
	h.Dispatch(o)
	return nil
}

func (h *Hub) remove(key string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[key], id)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}
