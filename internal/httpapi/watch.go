package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/pickup/internal/order"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// latest holds the newest pending snapshot for one websocket session. A slow
// client skips intermediate snapshots instead of blocking the feed.
type latest struct {
	mu     sync.Mutex
	o      order.Order
	has    bool
	notify chan struct{}
}

func newLatest() *latest {
	return &latest{notify: make(chan struct{}, 1)}
}

func (l *latest) put(o order.Order) {
	l.mu.Lock()
	l.o, l.has = o, true
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *latest) take() (order.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.o, l.has
	l.has = false
	return o, ok
}

// watchOrder streams the reconciled state of one order over a websocket.
// All sessions for the same order share one feed subscription.
func (s *Server) watchOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Watches == nil {
		writeError(w, http.StatusServiceUnavailable, "live updates not configured")
		return
	}

	current, err := s.deps.Orders.Get(r.Context(), id)
	if errors.Is(err, order.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.logger.Error("order lookup failed", "order", id, "error", err)
		writeError(w, http.StatusBadGateway, "order lookup failed")
		return
	}
	s.readSucceeded()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "order", id, "error", err)
		return
	}
	defer conn.Close()

	session := uuid.Must(uuid.NewV7()).String()
	logger := s.logger.With("session", session, "order", id)

	pending := newLatest()
	pending.put(current)

	cancel, err := s.deps.Watches.Watch(id, func(o order.Order) {
		s.readSucceeded()
		pending.put(o)
	})
	if err != nil {
		logger.Warn("live subscription failed", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer cancel()
	logger.Debug("websocket session started")

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// The reader only exists to notice the client going away.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("websocket session ended")
			return
		case <-pending.notify:
			o, ok := pending.take()
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.view(o, true)); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
