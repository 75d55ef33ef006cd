// Package guard keeps realtime order subscriptions idempotent.
//
// A Guard owns at most one live subscription to a Source for one key no
// matter how often Start and Stop are called. A Conditional drives a Guard
// from a predicate, and a Registry shares one Guard per key between many
// watchers in a process.
//
// Deliveries that arrive after teardown are dropped. Callback panics are
// recovered and logged so one bad listener cannot break the feed.
package guard
