package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pickup/internal/order"
)

// GroupResult lists order ids per list-view bucket. Rejected and cancelled
// orders belong to no bucket and are counted as Ungrouped.
type GroupResult struct {
	Active    []string `json:"active"`
	Scanned   []string `json:"scanned"`
	Completed []string `json:"completed"`
	Ungrouped int      `json:"ungrouped"`
}

func (r GroupResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "active (%d): %s\n", len(r.Active), strings.Join(r.Active, ", "))
	fmt.Fprintf(&b, "scanned (%d): %s\n", len(r.Scanned), strings.Join(r.Scanned, ", "))
	fmt.Fprintf(&b, "completed (%d): %s", len(r.Completed), strings.Join(r.Completed, ", "))
	if r.Ungrouped > 0 {
		fmt.Fprintf(&b, "\nungrouped: %d", r.Ungrouped)
	}
	return b.String()
}

// NewGroupCommand creates the group command.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group <orders-file>",
		Short: "Bucket orders into active, scanned and completed lists",
		Long: `Bucket a JSON array of orders by canonical state, the way an order
history screen lists them. Input order is preserved within each bucket.

Examples:
  pickup group orders.json
  pickup group orders.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runGroup(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	inputs, err := loadOrders(cmd, f, path)
	if err != nil {
		return err
	}

	orders := make([]order.Order, len(inputs))
	for i, in := range inputs {
		orders[i] = in.Order
	}
	g := order.GroupByStatus(orders)

	return f.Success(GroupResult{
		Active:    orderIDs(g.Active),
		Scanned:   orderIDs(g.Scanned),
		Completed: orderIDs(g.Completed),
		Ungrouped: len(orders) - g.Len(),
	})
}

func orderIDs(orders []order.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
