package harness

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/pickup/internal/canonical"
	"github.com/roach88/pickup/internal/order"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %s (rule %d)\n", event.Seq, event.Step, event.State, event.Rule)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some observed snapshot reached the state.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want := order.ParseUIState(assertion.State)
	for _, event := range trace {
		if event.State == want {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("state %s", assertion.State),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that states were first reached in the given order.
// States don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// First position of each state, 1-indexed so zero means absent
	positions := make(map[order.UIState]int)
	for i, event := range trace {
		if positions[event.State] == 0 {
			positions[event.State] = i + 1
		}
	}

	for _, s := range assertion.States {
		if positions[order.ParseUIState(s)] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all states present: %v", assertion.States),
				Actual:   fmt.Sprintf("missing state: %s", s),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.States); i++ {
		prev := assertion.States[i-1]
		curr := assertion.States[i]
		pp := positions[order.ParseUIState(prev)]
		cp := positions[order.ParseUIState(curr)]

		if pp >= cp {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("states in order: %v", assertion.States),
				Actual:   fmt.Sprintf("%s (pos %d) should be before %s (pos %d)", prev, pp, curr, cp),
				Trace:    trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the state was observed exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	want := order.ParseUIState(assertion.State)
	count := 0
	for _, event := range trace {
		if event.State == want {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.State),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares the final snapshot against expected wire field
// values using subset semantics. The pseudo-field "state" holds the
// canonical state of the final snapshot.
func assertFinalState(final order.Order, assertion Assertion) error {
	actual, err := wireFields(final)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	actual["state"] = string(order.Canonical(final))

	var mismatches []string
	for _, key := range canonical.SortedKeys(assertion.Expect) {
		got, ok := actual[key]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no such field", key))
			continue
		}
		if !valuesEqual(got, assertion.Expect[key]) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%v (expected %v)", key, got, assertion.Expect[key]))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}

	return &AssertionError{
		Type:     AssertFinalState,
		Expected: formatExpect(assertion.Expect),
		Actual:   strings.Join(mismatches, ", "),
	}
}

// valuesEqual compares by text form. Scenario values come from YAML and
// snapshot values from JSON, so 12.5 and "12.5" must agree; decimal amounts
// are compared numerically.
func valuesEqual(actual, expected any) bool {
	a := fmt.Sprint(actual)
	e := fmt.Sprint(expected)
	if a == e {
		return true
	}
	return amountsEqual(a, e)
}

func amountsEqual(a, b string) bool {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Equal(db)
}

func formatExpect(expect map[string]any) string {
	parts := make([]string, 0, len(expect))
	for _, k := range canonical.SortedKeys(expect) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, expect[k]))
	}
	return strings.Join(parts, ", ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.Final, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
