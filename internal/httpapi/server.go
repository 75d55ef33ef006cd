// Package httpapi serves order state, token scanning, network status and
// live order updates over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/pickup/internal/guard"
	"github.com/roach88/pickup/internal/metrics"
	"github.com/roach88/pickup/internal/netmon"
	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/token"
)

// OrderStore is the read side the API needs.
type OrderStore interface {
	order.Lookup
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
}

// Deps are the collaborators the API is built from. Metrics and Transport
// are optional.
type Deps struct {
	Orders  OrderStore
	Tokens  *token.Service
	Monitor *netmon.Monitor
	Watches *guard.Registry
	Metrics *metrics.Recorder

	// Transport receives connectivity events posted to /network/{event}.
	// Defaults to applying them to Monitor directly.
	Transport func(context.Context, netmon.Event) error

	Logger *slog.Logger
}

// Server holds the handlers.
type Server struct {
	deps    Deps
	scanner *token.Scanner
	logger  *slog.Logger
}

// New creates a Server from deps.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Transport == nil && deps.Monitor != nil {
		mon := deps.Monitor
		deps.Transport = func(_ context.Context, ev netmon.Event) error {
			mon.HandleTransport(ev)
			return nil
		}
	}

	scanOpts := []token.ScannerOption{token.WithLogger(logger)}
	if deps.Metrics != nil {
		scanOpts = append(scanOpts, token.WithObserver(deps.Metrics))
	}

	return &Server{
		deps:    deps,
		scanner: token.NewScanner(deps.Tokens, deps.Orders, scanOpts...),
		logger:  logger,
	}
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logRequests(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/state", s.orderState)
		r.Get("/watch", s.watchOrder)
	})
	r.Get("/users/{id}/orders", s.userOrders)
	r.Post("/tokens/scan", s.scanToken)

	r.Get("/network", s.networkStatus)
	r.Post("/network/{event}", s.networkEvent)

	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}
	return r
}

// logRequests logs one line per request with slog.
func logRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
