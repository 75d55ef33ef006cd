package order

// Groups buckets orders by canonical state for list views.
// REJECTED and CANCELLED orders are not placed in any bucket.
type Groups struct {
	Active    []Order `json:"active"`
	Scanned   []Order `json:"scanned"`
	Completed []Order `json:"completed"`
}

// GroupByStatus partitions orders by their canonical state, preserving input
// order within each bucket. Buckets are never nil.
func GroupByStatus(orders []Order) Groups {
	g := Groups{
		Active:    []Order{},
		Scanned:   []Order{},
		Completed: []Order{},
	}
	for _, o := range orders {
		switch Canonical(o) {
		case StatePendingPayment, StateAwaitingQR, StateQRActive:
			g.Active = append(g.Active, o)
		case StateScanned:
			g.Scanned = append(g.Scanned, o)
		case StateCompleted:
			g.Completed = append(g.Completed, o)
		}
	}
	return g
}

// Len returns the number of grouped orders.
func (g Groups) Len() int {
	return len(g.Active) + len(g.Scanned) + len(g.Completed)
}
