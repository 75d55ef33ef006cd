package guard

import (
	"context"
	"fmt"
	"sync"
)

// Predicate decides whether a subscription should currently exist.
type Predicate func() bool

// Conditional drives a Guard from a predicate.
//
// Each Reevaluate compares the predicate with the last applied decision:
// false to true subscribes, true to false unsubscribes, and an unchanged
// value does nothing no matter how often it is re-evaluated. After Release no
// re-evaluation can subscribe again.
type Conditional struct {
	guard     *Guard
	predicate Predicate

	mu      sync.Mutex
	applied bool
}

// NewConditional creates a conditional guard. Nothing is subscribed until the
// first Reevaluate or Watch.
func NewConditional(key string, predicate Predicate, src Source, cb Callback, opts ...Option) *Conditional {
	return &Conditional{
		guard:     New(key, src, cb, opts...),
		predicate: predicate,
	}
}

// Conditionally creates a conditional guard, evaluates it once and returns its
// release handle. If the initial subscription fails the guard is released and
// the transport error is returned.
func Conditionally(key string, predicate Predicate, src Source, cb Callback, opts ...Option) (func(), error) {
	c := NewConditional(key, predicate, src, cb, opts...)
	if err := c.Reevaluate(); err != nil {
		c.Release()
		return nil, err
	}
	return c.Release, nil
}

// Live reports whether the underlying subscription is currently open.
func (c *Conditional) Live() bool {
	return c.guard.Live()
}

// Released reports whether Release has been called.
func (c *Conditional) Released() bool {
	return c.guard.Released()
}

// Reevaluate reconciles liveness with the predicate. A failed subscribe leaves
// the applied decision at false, so the next true evaluation tries again.
func (c *Conditional) Reevaluate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.guard.Released() {
		return nil
	}

	want := c.evaluate()
	if want == c.applied {
		return nil
	}

	if want {
		if err := c.guard.Start(); err != nil {
			if err == ErrReleased {
				return nil
			}
			return err
		}
	} else {
		c.guard.Stop()
	}
	c.applied = want
	return nil
}

// Watch evaluates immediately and then on every trigger until ctx ends or the
// triggers channel closes. Transport errors are logged; the next trigger retries.
func (c *Conditional) Watch(ctx context.Context, triggers <-chan struct{}) {
	c.reevaluateAndLog()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			c.reevaluateAndLog()
		}
	}
}

// Release tears down any subscription and makes the guard inert.
func (c *Conditional) Release() {
	c.guard.Release()
}

func (c *Conditional) reevaluateAndLog() {
	if err := c.Reevaluate(); err != nil {
		c.guard.logger.Warn("re-evaluation failed", "error", err)
	}
}

// evaluate runs the predicate; a panicking predicate counts as false.
func (c *Conditional) evaluate() (want bool) {
	defer func() {
		if r := recover(); r != nil {
			c.guard.logger.Error("guard predicate panicked", "panic", fmt.Sprint(r))
			want = false
		}
	}()
	return c.predicate()
}
