package schedule

import (
	"context"
	"sync"
)

// ReadyCell is a single-assignment cell: exactly one producer calls Set, any
// number of consumers block in Wait until the value is in. Replaces the usual
// deferred/resolver-pair promise for "schedule loaded" gating.
type ReadyCell[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
}

// NewReadyCell creates an unset cell.
func NewReadyCell[T any]() *ReadyCell[T] {
	return &ReadyCell[T]{done: make(chan struct{})}
}

// Set assigns the value and releases all waiters. Only the first call has any
// effect.
func (c *ReadyCell[T]) Set(v T) {
	c.once.Do(func() {
		c.val = v
		close(c.done)
	})
}

// Wait blocks until the cell is set or ctx is done.
func (c *ReadyCell[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the cell has been set.
func (c *ReadyCell[T]) Ready() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
