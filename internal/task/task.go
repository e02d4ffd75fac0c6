// Package task runs a function asynchronously with explicit completion and cancellation.
package task

import (
	"context"
	"sync"
	"time"
)

// Task is the handle of a function running on its own goroutine.
// The result is published exactly once; Done is closed afterwards.
type Task[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	value  T
	err    error
}

// Go starts fn on a goroutine with a context derived from parent.
// Cancelling parent or calling Cancel cancels the context fn receives.
func Go[T any](parent context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(parent)
	t := &Task[T]{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		v, err := fn(ctx)
		t.finish(v, err)
	}()
	return t
}

func (t *Task[T]) finish(v T, err error) {
	t.once.Do(func() {
		t.value = v
		t.err = err
		close(t.done)
	})
}

// Done is closed when the task has produced its result
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the running function to stop. It does not wait.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Wait blocks until the task completes or ctx is done.
// Giving up on ctx does not cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
