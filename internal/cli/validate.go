package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool            `json:"valid"`
	Orders int             `json:"orders"`
	Errors []OrderProblems `json:"errors,omitempty"`
}

// OrderProblems lists what is wrong with one input order.
type OrderProblems struct {
	Index    int      `json:"index"`
	OrderID  string   `json:"order_id,omitempty"`
	Problems []string `json:"problems"`
}

func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("\u2713 %d order(s) valid", r.Orders)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\u2717 %d of %d order(s) invalid", len(r.Errors), r.Orders)
	for _, e := range r.Errors {
		name := e.OrderID
		if name == "" {
			name = fmt.Sprintf("#%d", e.Index)
		}
		for _, p := range e.Problems {
			fmt.Fprintf(&b, "\n  %s: %s", name, p)
		}
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <order-file>",
		Short: "Check order documents against the order schema",
		Long: `Check one JSON order object, or an array of them, against the order
schema and the cross-field rules (an active code requires a successful
payment, amounts are non-negative).

Exit codes:
  0 - All orders valid
  1 - One or more orders invalid
  2 - Command error (unreadable file, invalid JSON)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	inputs, err := loadOrders(cmd, f, path)
	if err != nil {
		return err
	}

	v := schema.MustNew()
	result := ValidationResult{Valid: true, Orders: len(inputs)}
	for i, in := range inputs {
		if ps := problems(v, in); len(ps) > 0 {
			result.Valid = false
			result.Errors = append(result.Errors, OrderProblems{Index: i, OrderID: in.Order.ID, Problems: ps})
		}
	}

	if result.Valid {
		return f.Success(result)
	}

	if opts.Format == "json" {
		if err := f.Error(ErrCodeInvalid, fmt.Sprintf("%d order(s) invalid", len(result.Errors)), result.Errors); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, result)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d order(s) invalid", len(result.Errors)))
}
