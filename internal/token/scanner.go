package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pickup/internal/order"
)

// Scan outcome codes, also used as metric labels.
const (
	ResultValid            = "valid"
	ResultMalformed        = "malformed"
	ResultUnknownOrder     = "unknown_order"
	ResultIdentityMismatch = "identity_mismatch"
	ResultBadSignature     = "bad_signature"
)

// Observer is notified of every completed scan.
type Observer interface {
	ObserveScan(result string)
}

// ScanResult is the outcome of checking a scanned pickup code against the
// current order snapshot. Valid only speaks to authenticity; State and
// Displayable let the caller decide whether to hand the order over.
type ScanResult struct {
	Valid       bool          `json:"valid"`
	Result      string        `json:"result"`
	OrderID     string        `json:"orderId,omitempty"`
	State       order.UIState `json:"state,omitempty"`
	Displayable bool          `json:"displayable"`
}

// Scanner verifies raw pickup codes at the counter.
// It reads order snapshots but never writes them.
type Scanner struct {
	svc      *Service
	lookup   order.Lookup
	logger   *slog.Logger
	observer Observer
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the scanner logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithObserver registers a scan observer, typically a metrics recorder.
func WithObserver(o Observer) ScannerOption {
	return func(s *Scanner) {
		s.observer = o
	}
}

// NewScanner creates a Scanner over svc and lookup.
func NewScanner(svc *Service, lookup order.Lookup, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		svc:    svc,
		lookup: lookup,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan decodes raw, loads the claimed order and verifies the token against the
// stored creation time and identity. Malformed or forged codes produce an
// invalid result with a nil error; only lookup failures return an error.
func (s *Scanner) Scan(ctx context.Context, raw string) (ScanResult, error) {
	p, err := Decode(raw)
	if err != nil {
		s.logger.Debug("scan rejected", "reason", ResultMalformed, "error", err)
		return s.finish(ScanResult{Result: ResultMalformed}), nil
	}

	o, err := s.lookup.Get(ctx, p.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		s.logger.Info("scan rejected", "reason", ResultUnknownOrder, "order", p.OrderID)
		return s.finish(ScanResult{Result: ResultUnknownOrder, OrderID: p.OrderID}), nil
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan %s: %w", p.OrderID, err)
	}

	res := ScanResult{
		OrderID:     o.ID,
		State:       order.Canonical(o),
		Displayable: order.ShouldShowToken(o),
	}

	switch {
	case o.UserID != p.UserID || o.CafeteriaID != p.CafeteriaID:
		res.Result = ResultIdentityMismatch
	case !s.svc.Verify(p, o.CreatedAt):
		res.Result = ResultBadSignature
	default:
		res.Valid = true
		res.Result = ResultValid
	}

	if res.Valid {
		s.logger.Info("scan verified", "order", o.ID, "state", res.State)
	} else {
		s.logger.Warn("scan rejected", "reason", res.Result, "order", o.ID)
	}
	return s.finish(res), nil
}

func (s *Scanner) finish(res ScanResult) ScanResult {
	if s.observer != nil {
		s.observer.ObserveScan(res.Result)
	}
	return res
}
