package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/pickup/internal/netmon"
	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/token"
)

// StateView is the reconciled view of one order.
type StateView struct {
	OrderID         string        `json:"orderId"`
	State           order.UIState `json:"state"`
	Rule            int           `json:"rule"`
	ShowToken       bool          `json:"showToken"`
	Terminal        bool          `json:"terminal"`
	CanNavigateBack bool          `json:"canNavigateBack"`
	Token           string        `json:"token,omitempty"`
}

// GroupsView is a user's orders bucketed by canonical state.
type GroupsView struct {
	Active    []StateView `json:"active"`
	Scanned   []StateView `json:"scanned"`
	Completed []StateView `json:"completed"`
}

type scanRequest struct {
	Token string `json:"token"`
}

type networkView struct {
	Status netmon.Status `json:"status"`
}

// maxScanBody bounds POST /tokens/scan bodies.
const maxScanBody = 4 << 10

// view reconciles o. The encoded pickup token is attached only when it may
// be shown.
func (s *Server) view(o order.Order, withToken bool) StateView {
	d := order.Explain(o)
	v := StateView{
		OrderID:         o.ID,
		State:           d.State,
		Rule:            d.Rule,
		ShowToken:       order.ShouldShowToken(o),
		Terminal:        order.IsTerminal(d.State),
		CanNavigateBack: order.CanNavigateBack(d.State),
	}
	if withToken && v.ShowToken && s.deps.Tokens != nil {
		p := s.deps.Tokens.Generate(o.ID, o.UserID, o.CafeteriaID, o.CreatedAt)
		if raw, err := token.Encode(p); err == nil {
			v.Token = raw
		} else {
			s.logger.Warn("token not encodable", "order", o.ID, "error", err)
		}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveState(d.State)
	}
	return v
}

func (s *Server) views(orders []order.Order) []StateView {
	out := make([]StateView, len(orders))
	for i, o := range orders {
		out[i] = s.view(o, false)
	}
	return out
}

// readSucceeded feeds the staleness clock of the network monitor.
func (s *Server) readSucceeded() {
	if s.deps.Monitor != nil {
		s.deps.Monitor.RecordSuccess()
	}
}

func (s *Server) orderState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := s.deps.Orders.Get(r.Context(), id)
	if errors.Is(err, order.ErrNotFound) {
		s.readSucceeded()
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.logger.Error("order lookup failed", "order", id, "error", err)
		writeError(w, http.StatusBadGateway, "order lookup failed")
		return
	}
	s.readSucceeded()
	writeJSON(w, http.StatusOK, s.view(o, true))
}

func (s *Server) userOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	orders, err := s.deps.Orders.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("order list failed", "user", userID, "error", err)
		writeError(w, http.StatusBadGateway, "order list failed")
		return
	}
	s.readSucceeded()

	g := order.GroupByStatus(orders)
	writeJSON(w, http.StatusOK, GroupsView{
		Active:    s.views(g.Active),
		Scanned:   s.views(g.Scanned),
		Completed: s.views(g.Completed),
	})
}

// scanToken accepts either {"token": "..."} or the raw token as the body.
func (s *Server) scanToken(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScanBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	raw := strings.TrimSpace(string(body))
	var req scanRequest
	if json.Unmarshal(body, &req) == nil && req.Token != "" {
		raw = req.Token
	}

	res, err := s.scanner.Scan(r.Context(), raw)
	if err != nil {
		s.logger.Error("scan lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "order lookup failed")
		return
	}
	if res.OrderID != "" {
		s.readSucceeded()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) networkStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "network monitor not configured")
		return
	}
	writeJSON(w, http.StatusOK, networkView{Status: s.deps.Monitor.Status()})
}

func (s *Server) networkEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := netmon.ParseEvent(chi.URLParam(r, "event"))
	if !ok {
		writeError(w, http.StatusBadRequest, "event must be online or offline")
		return
	}
	if s.deps.Transport == nil {
		writeError(w, http.StatusServiceUnavailable, "network monitor not configured")
		return
	}
	if err := s.deps.Transport(r.Context(), ev); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
