package order

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) by lookups for an unknown order ID.
var ErrNotFound = errors.New("order not found")

// Lookup reads the latest snapshot of a single order.
type Lookup interface {
	Get(ctx context.Context, id string) (Order, error)
}
