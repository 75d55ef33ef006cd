package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pickup/internal/order"
)

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) StateView {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var v StateView
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestWatch_StreamsStateChanges(t *testing.T) {
	f := newFixture(t)
	o := activeOrder("ord-1", "user-1")
	o.PaymentStatus = order.PaymentPending
	o.QRStatus = order.QRNone
	f.orders.add(o)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	conn := dial(t, srv, "/orders/ord-1/watch")
	assert.Equal(t, order.StatePendingPayment, readView(t, conn).State)

	require.Eventually(t, func() bool { return f.orders.Live("ord-1") == 1 }, 5*time.Second, time.Millisecond)

	o.PaymentStatus = order.PaymentSuccess
	o.QRStatus = order.QRActive
	f.orders.Put(o)

	v := readView(t, conn)
	assert.Equal(t, order.StateQRActive, v.State)
	assert.NotEmpty(t, v.Token)
}

func TestWatch_SessionsShareOneSubscription(t *testing.T) {
	f := newFixture(t)
	f.orders.add(activeOrder("ord-1", "user-1"))

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	a := dial(t, srv, "/orders/ord-1/watch")
	b := dial(t, srv, "/orders/ord-1/watch")
	readView(t, a)
	readView(t, b)

	require.Eventually(t, func() bool { return f.orders.Subscribes() >= 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, f.orders.Live("ord-1"))

	a.Close()
	b.Close()
	require.Eventually(t, func() bool { return f.orders.Live("ord-1") == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestWatch_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/orders/missing/watch"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
