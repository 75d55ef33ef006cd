package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/pickup/internal/guard"
	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/store"
	"github.com/roach88/pickup/internal/token"
)

// DeliveryTimeout bounds how long the harness waits for the feed to deliver
// a written snapshot.
const DeliveryTimeout = 5 * time.Second

// secret keys the harness token service. Traces only record whether the
// token verified, so the value never reaches golden files.
const secret = "pickup-harness-secret"

// Harness applies scenario writes through the store and observes them
// through a registry guard, the same path a live consumer uses.
type Harness struct {
	store    *store.Store
	registry *guard.Registry
	tokens   *token.Service
	logger   *slog.Logger

	snapshots chan order.Order
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Write the initial order and start watching it
// 2. For each step, patch the current snapshot, write it and wait for delivery
// 3. Check each observed snapshot against the step expectation
// 4. Evaluate assertions against the trace and final snapshot
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context for store writes.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg := guard.NewRegistry(st, guard.WithLogger(logger))
	defer reg.Close()

	h := &Harness{
		store:     st,
		registry:  reg,
		tokens:    token.MustNewService([]byte(secret)),
		logger:    logger,
		snapshots: make(chan order.Order, len(scenario.Steps)+1),
	}

	initial, err := applyPatch(order.Order{}, scenario.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to decode initial order: %w", err)
	}

	result := NewResult()
	if err := h.start(ctx, initial, scenario.Expect, result); err != nil {
		return nil, err
	}

	current := initial
	for i, step := range scenario.Steps {
		next, err := applyPatch(current, step.Set)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): failed to apply patch: %w", i, step.Name, err)
		}
		if err := h.store.Put(ctx, next); err != nil {
			return nil, fmt.Errorf("step %d (%s): failed to write order: %w", i, step.Name, err)
		}
		observed, err := h.await()
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
		h.record(step.Name, observed, step.Expect, result)
		current = observed
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// start writes the initial snapshot and attaches the watcher. The feed
// replays the current snapshot, which becomes the first trace event.
func (h *Harness) start(ctx context.Context, initial order.Order, expect *ExpectClause, result *Result) error {
	if err := h.store.Put(ctx, initial); err != nil {
		return fmt.Errorf("failed to write initial order: %w", err)
	}

	if _, err := h.registry.Watch(initial.ID, func(o order.Order) {
		h.snapshots <- o
	}); err != nil {
		return fmt.Errorf("failed to watch order %s: %w", initial.ID, err)
	}

	observed, err := h.await()
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	h.record("initial", observed, expect, result)
	return nil
}

func (h *Harness) await() (order.Order, error) {
	select {
	case o := <-h.snapshots:
		return o, nil
	case <-time.After(DeliveryTimeout):
		return order.Order{}, fmt.Errorf("no snapshot delivered within %s", DeliveryTimeout)
	}
}

// record reduces an observed snapshot to a trace event and checks it.
func (h *Harness) record(step string, o order.Order, expect *ExpectClause, result *Result) {
	d := order.Explain(o)
	ev := TraceEvent{
		Step:            step,
		State:           d.State,
		Rule:            d.Rule,
		ShowToken:       order.ShouldShowToken(o),
		Terminal:        order.IsTerminal(d.State),
		CanNavigateBack: order.CanNavigateBack(d.State),
	}
	if ev.ShowToken {
		ev.Token = h.checkToken(o)
	}
	ev = result.AddTrace(ev)
	result.Final = o

	h.logger.Debug("observed snapshot",
		"step", step,
		"order_id", o.ID,
		"state", d.State,
		"rule", d.Rule)

	for _, msg := range checkExpect(ev, expect) {
		result.AddError(msg)
	}
}

// checkToken generates the displayable token, sends it through the wire
// encoding and verifies it as a scanner would.
func (h *Harness) checkToken(o order.Order) string {
	raw, err := token.Encode(h.tokens.Generate(o.ID, o.UserID, o.CafeteriaID, o.CreatedAt))
	if err != nil {
		return TokenIncomplete
	}
	p, err := token.Decode(raw)
	if err != nil || !h.tokens.Verify(p, o.CreatedAt) {
		return TokenRejected
	}
	return TokenVerified
}

func checkExpect(ev TraceEvent, e *ExpectClause) []string {
	if e == nil {
		return nil
	}
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("step %q: expected %s %v, got %v", ev.Step, field, want, got))
	}
	if want := order.ParseUIState(e.State); want != ev.State {
		mismatch("state", want, ev.State)
	}
	if e.Rule != 0 && e.Rule != ev.Rule {
		mismatch("rule", e.Rule, ev.Rule)
	}
	if e.ShowToken != nil && *e.ShowToken != ev.ShowToken {
		mismatch("show_token", *e.ShowToken, ev.ShowToken)
	}
	if e.Terminal != nil && *e.Terminal != ev.Terminal {
		mismatch("terminal", *e.Terminal, ev.Terminal)
	}
	if e.CanNavigateBack != nil && *e.CanNavigateBack != ev.CanNavigateBack {
		mismatch("can_navigate_back", *e.CanNavigateBack, ev.CanNavigateBack)
	}
	return errs
}

// applyPatch overlays wire fields onto o. The result is decoded with the
// order's own JSON rules, so unknown enum text degrades to unset.
func applyPatch(o order.Order, set map[string]any) (order.Order, error) {
	doc, err := wireFields(o)
	if err != nil {
		return order.Order{}, err
	}
	for k, v := range set {
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339Nano)
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return order.Order{}, err
	}
	var out order.Order
	if err := json.Unmarshal(merged, &out); err != nil {
		return order.Order{}, err
	}
	return out, nil
}

// wireFields returns o keyed by wire field names.
func wireFields(o order.Order) (map[string]any, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
