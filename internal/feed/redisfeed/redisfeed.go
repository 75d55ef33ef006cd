// Package redisfeed carries order snapshots over Redis pub/sub.
//
// Each order has its own channel, pickup:order:<id>. Publish also keeps the
// latest snapshot under pickup:order:<id>:snapshot so the feed doubles as an
// order lookup.
package redisfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/pickup/internal/feed"
	"github.com/roach88/pickup/internal/order"
)

const prefix = "pickup:order:"

// Channel returns the pub/sub channel for an order id.
func Channel(id string) string {
	return prefix + id
}

// SnapshotKey returns the key holding the latest snapshot for an order id.
func SnapshotKey(id string) string {
	return prefix + id + ":snapshot"
}

// Feed is a guard.Source and order.Lookup backed by Redis.
type Feed struct {
	client         *redis.Client
	logger         *slog.Logger
	subscribeAfter time.Duration
	snapshot       func(ctx context.Context, id string) (order.Order, error)
}

// Option configures a Feed.
type Option func(*Feed)

// WithLogger sets the feed logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		f.logger = l
	}
}

// WithSubscribeTimeout bounds how long Subscribe waits for Redis to confirm
// the subscription. Defaults to five seconds.
func WithSubscribeTimeout(d time.Duration) Option {
	return func(f *Feed) {
		f.subscribeAfter = d
	}
}

// New wraps client. The caller owns the client and closes it.
func New(client *redis.Client, opts ...Option) *Feed {
	f := &Feed{
		client:         client,
		logger:         slog.Default(),
		subscribeAfter: 5 * time.Second,
	}
	f.snapshot = f.Get
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe opens a pub/sub subscription for key and forwards decoded
// snapshots to fn from a dedicated goroutine. It returns only after Redis has
// confirmed the subscription. The stored snapshot, if any, is delivered first;
// a publish racing that read may be delivered again afterwards.
func (f *Feed) Subscribe(key string, fn func(order.Order)) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.subscribeAfter)
	defer cancel()

	ps := f.client.Subscribe(ctx, Channel(key))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", key, err)
	}

	ch := ps.Channel()
	go func() {
		f.replay(key, fn)
		for msg := range ch {
			o, err := feed.Decode([]byte(msg.Payload))
			if err != nil {
				f.logger.Warn("dropping undecodable snapshot", "channel", msg.Channel, "error", err)
				continue
			}
			if o.ID != key {
				f.logger.Warn("dropping snapshot for another order", "channel", msg.Channel, "order", o.ID)
				continue
			}
			fn(o)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				f.logger.Debug("redis unsubscribe", "order", key, "error", err)
			}
		})
	}, nil
}

// replay delivers the stored snapshot for key. Missing or unreadable snapshots
// are skipped; the subscription still carries every later publish.
func (f *Feed) replay(key string, fn func(order.Order)) {
	ctx, cancel := context.WithTimeout(context.Background(), f.subscribeAfter)
	defer cancel()

	o, err := f.snapshot(ctx, key)
	switch {
	case errors.Is(err, order.ErrNotFound):
		return
	case err != nil:
		f.logger.Warn("snapshot replay failed", "order", key, "error", err)
		return
	case o.ID != key:
		f.logger.Warn("dropping snapshot for another order", "key", SnapshotKey(key), "order", o.ID)
		return
	}
	fn(o)
}

// Publish stores o as the latest snapshot and announces it on the order
// channel in one MULTI/EXEC transaction.
func (f *Feed) Publish(ctx context.Context, o order.Order) error {
	data, err := feed.Encode(o)
	if err != nil {
		return err
	}
	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, SnapshotKey(o.ID), data, 0)
		pipe.Publish(ctx, Channel(o.ID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", o.ID, err)
	}
	return nil
}

// Get returns the latest published snapshot for id.
func (f *Feed) Get(ctx context.Context, id string) (order.Order, error) {
	data, err := f.client.Get(ctx, SnapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return order.Order{}, fmt.Errorf("redis get %s: %w", id, order.ErrNotFound)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	return feed.Decode(data)
}

// Ping checks connectivity, used by the serve command at startup.
func (f *Feed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}
