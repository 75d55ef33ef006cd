package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/schema"
)

// Scenario drives one order through a sequence of collaborator writes and
// checks what a consumer observes after each one.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Order is the initial snapshot, keyed by wire field names.
	Order map[string]any `yaml:"order"`

	// Expect optionally checks the snapshot observed before any step.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Steps are applied in order. Each one patches the current snapshot
	// and writes the whole record back.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and snapshot.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single collaborator write.
type Step struct {
	// Name labels the step in the trace.
	Name string `yaml:"name"`

	// Set holds the fields this write changes, keyed by wire field names.
	Set map[string]any `yaml:"set"`

	// Expect specifies what the consumer must observe after the write.
	// If nil, no validation is performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected reconciliation of a snapshot.
// Unset optional fields are not checked.
type ExpectClause struct {
	State           string `yaml:"state"`
	Rule            int    `yaml:"rule,omitempty"`
	ShowToken       *bool  `yaml:"show_token,omitempty"`
	Terminal        *bool  `yaml:"terminal,omitempty"`
	CanNavigateBack *bool  `yaml:"can_navigate_back,omitempty"`
}

// Assertion validates the trace or the final snapshot.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some event reached State
	// - "trace_order": States were first reached in this order
	// - "trace_count": State was observed exactly Count times
	// - "final_state": the final snapshot has the Expect field values
	Type string `yaml:"type"`

	// State is used by trace_contains and trace_count.
	State string `yaml:"state,omitempty"`

	// States is used by trace_order.
	States []string `yaml:"states,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Expect holds wire field values (plus "state") for final_state.
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario, schema.MustNew()); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that the
// order and every patch conform to the order schema.
func validateScenario(s *Scenario, v *schema.Validator) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Order) == 0 {
		return fmt.Errorf("order is required")
	}
	if err := v.Order(s.Order); err != nil {
		return fmt.Errorf("order: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if err := validateExpect("expect", s.Expect); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if len(step.Set) == 0 {
			return fmt.Errorf("steps[%d]: set is required and must be non-empty", i)
		}
		if _, ok := step.Set["id"]; ok {
			return fmt.Errorf("steps[%d]: id cannot be changed", i)
		}
		if err := v.Patch(step.Set); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := validateExpect(fmt.Sprintf("steps[%d].expect", i), step.Expect); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateExpect(where string, e *ExpectClause) error {
	if e == nil {
		return nil
	}
	if e.State == "" {
		return fmt.Errorf("%s: state is required", where)
	}
	if order.ParseUIState(e.State) == order.StateUnknown {
		return fmt.Errorf("%s: unknown state %q", where, e.State)
	}
	if e.Rule < 0 || e.Rule > order.FallbackRule {
		return fmt.Errorf("%s: rule must be between 1 and %d", where, order.FallbackRule)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
