// Package testutil holds deterministic test doubles: a manually advanced
// clock and an in-memory order feed that satisfies both guard.Source and
// order.Lookup.
package testutil
