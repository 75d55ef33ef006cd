// Package order defines the fulfillment order record and reconciles it into a
// single canonical workflow state.
//
// Several collaborators write to an order independently: placement creates it,
// payment and scanning set PaymentStatus, QRStatus and ScannedAt, serving sets
// OrderStatus and ServedAt. Updates arrive out of order. Canonical turns any
// whole-record snapshot into one UIState using a fixed rule precedence, so every
// consumer that sees the same snapshot renders the same stage.
//
// Everything in this package is a pure function of its arguments and is safe
// for concurrent use.
//
// The feed is assumed to deliver whole records. Partial deltas merged by a
// consumer can produce combinations no writer ever committed.
package order
