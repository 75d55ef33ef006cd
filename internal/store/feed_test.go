package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pickup/internal/order"
)

type collector struct {
	mu  sync.Mutex
	got []order.Order
}

func (c *collector) add(o order.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, o)
}

func (c *collector) snapshot() []order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]order.Order(nil), c.got...)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestSubscribe_DeliversCurrentSnapshotFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testOrder("ord-1", "user-1", time.UnixMilli(1000))))

	c := &collector{}
	unsub, err := s.Subscribe("ord-1", c.add)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, order.QRNone, c.snapshot()[0].QRStatus)
}

func TestSubscribe_DeliversWritesInOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := &collector{}
	unsub, err := s.Subscribe("ord-1", c.add)
	require.NoError(t, err)
	defer unsub()

	o := testOrder("ord-1", "user-1", time.UnixMilli(1000))
	statuses := []order.QRStatus{order.QRNone, order.QRActive, order.QRUsed}
	for _, st := range statuses {
		o.QRStatus = st
		require.NoError(t, s.Put(ctx, o))
	}

	require.Eventually(t, func() bool { return c.len() == 3 }, time.Second, time.Millisecond)
	for i, got := range c.snapshot() {
		assert.Equal(t, statuses[i], got.QRStatus)
	}
}

func TestPut_DeliversStoredRow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := &collector{}
	unsub, err := s.Subscribe("ord-1", c.add)
	require.NoError(t, err)
	defer unsub()

	o := testOrder("ord-1", "user-1", time.Unix(1, 123456789).In(time.FixedZone("UTC+2", 2*60*60)))
	o.TotalAmount = decimal.RequireFromString("12.500")
	require.NoError(t, s.Put(ctx, o))

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, time.Millisecond)
	got := c.snapshot()[0]

	stored, err := s.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.Equal(t, int64(1123), got.CreatedAt.UnixMilli())
	assert.False(t, got.CreatedAt.Equal(o.CreatedAt), "sub-millisecond part is not stored")
}

func TestSubscribe_OnlyMatchingKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := &collector{}
	unsub, err := s.Subscribe("ord-1", c.add)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.Put(ctx, testOrder("ord-2", "user-1", time.UnixMilli(1000))))
	require.NoError(t, s.Put(ctx, testOrder("ord-1", "user-1", time.UnixMilli(1000))))

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "ord-1", c.snapshot()[0].ID)
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := &collector{}
	unsub, err := s.Subscribe("ord-1", c.add)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers("ord-1"))

	unsub()
	unsub()
	assert.Equal(t, 0, s.Subscribers("ord-1"))

	require.NoError(t, s.Put(ctx, testOrder("ord-1", "user-1", time.UnixMilli(1000))))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.len())
}

func TestSubscribe_Errors(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Subscribe("", func(order.Order) {})
	assert.Error(t, err)

	require.NoError(t, s.Close())
	_, err = s.Subscribe("ord-1", func(order.Order) {})
	assert.ErrorIs(t, err, ErrClosed)
}
