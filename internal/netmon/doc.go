// Package netmon reports whether the order feed is online, offline or slow.
//
// Offline and online come from the platform connectivity Signal. Slow is
// derived: an online connection that has not had a successful read within the
// slow threshold is slow until the next success.
package netmon
