package kafkafeed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pickup/internal/guard"
	"github.com/roach88/pickup/internal/order"
)

var _ guard.Source = (*Hub)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeReader replays queued messages, then blocks until ctx ends.
type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func mustMessage(t *testing.T, o order.Order) kafka.Message {
	t.Helper()
	m, err := Message(o)
	require.NoError(t, err)
	return m
}

func TestHub_DispatchByKey(t *testing.T) {
	h := NewHub(quietLogger())
	var got []string
	unsub, err := h.Subscribe("ord-1", func(o order.Order) { got = append(got, o.ID+":"+string(o.QRStatus)) })
	require.NoError(t, err)

	h.Dispatch(order.Order{ID: "ord-2", QRStatus: order.QRActive})
	h.Dispatch(order.Order{ID: "ord-1", QRStatus: order.QRActive})
	assert.Equal(t, []string{"ord-1:ACTIVE"}, got)

	unsub()
	unsub()
	assert.Equal(t, 0, h.Subscribers("ord-1"))
	h.Dispatch(order.Order{ID: "ord-1", QRStatus: order.QRUsed})
	assert.Len(t, got, 1)
}

func TestHub_EmptyKeyRejected(t *testing.T) {
	_, err := NewHub(nil).Subscribe("", func(order.Order) {})
	assert.Error(t, err)
}

func TestHub_HandleMessage(t *testing.T) {
	h := NewHub(quietLogger())
	var got []order.Order
	_, err := h.Subscribe("ord-1", func(o order.Order) { got = append(got, o) })
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(mustMessage(t, order.Order{ID: "ord-1", QRStatus: order.QRUsed})))
	require.Len(t, got, 1)
	assert.Equal(t, order.QRUsed, got[0].QRStatus)

	assert.Error(t, h.HandleMessage(kafka.Message{Value: []byte("garbage")}))

	mismatched := mustMessage(t, order.Order{ID: "ord-1"})
	mismatched.Key = []byte("ord-2")
	assert.Error(t, h.HandleMessage(mismatched))
	assert.Len(t, got, 1)
}

func TestConsumer_FeedsHubAndSkipsBadMessages(t *testing.T) {
	h := NewHub(quietLogger())
	received := make(chan order.Order, 4)
	_, err := h.Subscribe("ord-1", func(o order.Order) { received <- o })
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{
		mustMessage(t, order.Order{ID: "ord-1", QRStatus: order.QRActive}),
		{Value: []byte("{")},
		mustMessage(t, order.Order{ID: "ord-1", QRStatus: order.QRUsed}),
	}}
	c := newConsumer(reader, h, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for _, want := range []order.QRStatus{order.QRActive, order.QRUsed} {
		select {
		case o := <-received:
			assert.Equal(t, want, o.QRStatus)
		case <-time.After(5 * time.Second):
			t.Fatal("snapshot not delivered")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.True(t, reader.closed)
}

func TestGuardOverHub(t *testing.T) {
	h := NewHub(quietLogger())
	var got []order.Order
	g := guard.New("ord-1", h, func(o order.Order) { got = append(got, o) },
		guard.WithLogger(quietLogger()))

	require.NoError(t, g.Start())
	require.NoError(t, g.Start())
	assert.Equal(t, 1, h.Subscribers("ord-1"))

	h.Dispatch(order.Order{ID: "ord-1"})
	g.Release()
	h.Dispatch(order.Order{ID: "ord-1"})

	assert.Len(t, got, 1)
	assert.Equal(t, 0, h.Subscribers("ord-1"))
}

func TestMessage(t *testing.T) {
	m := mustMessage(t, order.Order{ID: "ord-9"})
	assert.Equal(t, "ord-9", string(m.Key))

	_, err := Message(order.Order{})
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.ErrorIs(t, Config{Topic: "t"}.Validate(), ErrNoBrokers)
	assert.Error(t, Config{Brokers: []string{"b:9092"}}.Validate())
	assert.NoError(t, Config{Brokers: []string{"b:9092"}, Topic: "t"}.Validate())
}
