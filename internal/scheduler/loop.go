// Package scheduler provides a cooperative single-writer event loop.
//
// Guards and the network monitor hold small pieces of mutable state that are
// touched by transport callbacks, timer ticks and user actions. Instead of
// letting each caller mutate that state from its own goroutine, callers Post
// tasks and one Loop goroutine runs them in FIFO order. Two tasks never run at
// the same time, so state owned by the loop needs no further locking.
//
// Post is safe from any goroutine. Run must be called from exactly one.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Loop runs posted tasks one at a time.
type Loop struct {
	queue  *taskQueue
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		lp.logger = l
	}
}

// New creates a Loop. Call Run to start processing.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:  newTaskQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post submits t for execution on the loop goroutine.
// Returns false if the loop has been stopped.
func (l *Loop) Post(t Task) bool {
	return l.queue.Enqueue(t)
}

// Len returns the number of tasks waiting to run.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Run processes tasks until ctx is cancelled or Stop is called.
// A panicking task is logged and the loop continues with the next one.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("scheduler starting")

	for {
		if t, ok := l.queue.TryDequeue(); ok {
			l.exec(t)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("scheduler stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()
		case <-l.queue.Wait():
			if l.queue.Drained() {
				l.logger.Debug("scheduler stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Tasks already queued still run before Run returns.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Every posts fn to the loop at each interval until ctx ends.
// Ticks are dropped, not queued up, if the loop has been stopped.
func (l *Loop) Every(ctx context.Context, interval time.Duration, fn Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.Post(fn) {
				return
			}
		}
	}
}

func (l *Loop) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduler task panicked", "panic", fmt.Sprint(r))
		}
	}()
	t()
}
