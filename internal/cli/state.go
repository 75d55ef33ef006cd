package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/order"
	"github.com/roach88/pickup/internal/schema"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Strict bool // fail when the input has schema or field problems
}

// StateResult is the reconciliation of one order.
type StateResult struct {
	OrderID         string        `json:"order_id"`
	State           order.UIState `json:"state"`
	Rule            int           `json:"rule"`
	ShowToken       bool          `json:"show_token"`
	Terminal        bool          `json:"terminal"`
	CanNavigateBack bool          `json:"can_navigate_back"`
	Problems        []string      `json:"problems,omitempty"`
}

func (r StateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (rule %d)", r.OrderID, r.State, r.Rule)
	fmt.Fprintf(&b, " show_token=%t terminal=%t can_navigate_back=%t", r.ShowToken, r.Terminal, r.CanNavigateBack)
	for _, p := range r.Problems {
		fmt.Fprintf(&b, "\n  warning: %s", p)
	}
	return b.String()
}

// StateResults renders one line per order in text mode.
type StateResults []StateResult

func (rs StateResults) String() string {
	lines := make([]string, len(rs))
	for i, r := range rs {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <order-file>",
		Short: "Reconcile order snapshots into the state a customer sees",
		Long: `Reconcile one JSON order object, or an array of them, into its canonical
state and the display predicates derived from it.

Reconciliation never fails on malformed records; problems found by the
order schema are reported as warnings unless --strict is set.

Use "-" to read from stdin.

Examples:
  pickup state order.json
  pickup state orders.json --format json
  cat order.json | pickup state - --strict`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit with status 1 if any order has problems")

	return cmd
}

func runState(opts *StateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	inputs, err := loadOrders(cmd, f, path)
	if err != nil {
		return err
	}

	v := schema.MustNew()
	results := make(StateResults, 0, len(inputs))
	invalid := 0
	for _, in := range inputs {
		r := reconcile(in.Order)
		r.Problems = problems(v, in)
		if len(r.Problems) > 0 {
			invalid++
		}
		results = append(results, r)
	}

	var data any = results
	if len(results) == 1 {
		data = results[0]
	}
	if err := f.Success(data); err != nil {
		return err
	}

	if opts.Strict && invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d order(s) have problems", invalid))
	}
	return nil
}

func reconcile(o order.Order) StateResult {
	d := order.Explain(o)
	return StateResult{
		OrderID:         o.ID,
		State:           d.State,
		Rule:            d.Rule,
		ShowToken:       order.ShouldShowToken(o),
		Terminal:        order.IsTerminal(d.State),
		CanNavigateBack: order.CanNavigateBack(d.State),
	}
}
