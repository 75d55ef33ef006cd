package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLoop() *Loop {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func runLoop(t *testing.T, l *Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := quietLoop()
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	l.Stop()

	require.NoError(t, l.Run(context.Background()))
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_PostAfterStopRejected(t *testing.T) {
	l := quietLoop()
	l.Stop()
	assert.False(t, l.Post(func() {}))
}

func TestLoop_ConcurrentPostersSerialized(t *testing.T) {
	l := quietLoop()
	_, done := runLoop(t, l)

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()
	l.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 1000, counter)
}

func TestLoop_PanicIsolated(t *testing.T) {
	l := quietLoop()
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Stop()

	require.NoError(t, l.Run(context.Background()))
	assert.True(t, ran)
}

func TestLoop_ContextCancel(t *testing.T) {
	l := quietLoop()
	cancel, done := runLoop(t, l)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, l.Post(func() {}))
}

func TestLoop_Every(t *testing.T) {
	l := quietLoop()
	_, _ = runLoop(t, l)

	ticks := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Every(ctx, 5*time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(5 * time.Second):
			t.Fatal("tick not delivered")
		}
	}
}
