// Package harness runs order lifecycle scenarios against the real feed path.
//
// A scenario writes an initial order, then applies a sequence of partial
// collaborator writes. Every write goes through the SQLite store and every
// observation comes back through a guard registry watcher, so the trace is
// exactly what a subscribed consumer would render.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	order:
//	  id: ord-1
//	  paymentStatus: PENDING
//	  qrStatus: NONE
//	  orderStatus: PENDING
//	expect:
//	  state: PENDING_PAYMENT
//	steps:
//	  - name: payment confirmed
//	    set: { paymentStatus: SUCCESS, qrStatus: ACTIVE }
//	    expect:
//	      state: QR_ACTIVE
//	      show_token: true
//	assertions:
//	  - type: trace_order
//	    states: [PENDING_PAYMENT, QR_ACTIVE]
//	  - type: final_state
//	    expect: { state: QR_ACTIVE, qrStatus: ACTIVE }
//
// The order and every step patch are checked against the CUE order schema
// when the scenario is loaded.
//
// # Assertion Types
//
//   - trace_contains: some observed snapshot reached a state
//   - trace_order: states were first reached in the given order
//   - trace_count: a state was observed exactly N times
//   - final_state: the final snapshot has the given field values
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory database and a fixed token secret. Traces
// record whether a displayed token verified rather than the token itself, so
// golden files are stable across secrets and machines.
package harness
