// Package store provides SQLite-backed storage and a realtime feed for order
// snapshots.
//
// Every write replaces the whole record and is then delivered to the
// subscribers of that order id, so consumers only ever see complete
// snapshots. The Store satisfies guard.Source for realtime subscriptions and
// order.Lookup for scan-time verification.
//
// # Ordering
//
//   - A subscriber receives writes in commit order.
//   - ListByUser orders by created_at ASC, id ASC COLLATE BINARY so results
//     are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
