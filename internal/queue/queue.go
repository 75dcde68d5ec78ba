package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded, thread-safe FIFO. Producers never block; consumers
// block in Pop until a value arrives, the queue is closed or ctx ends.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

func New[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Push appends v. It returns false once the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.wake()
	return true
}

// TryPop returns the oldest value without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	v := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Pop blocks for the oldest value. ok is false when ctx is done or the queue
// is closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, true
		}

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return v, false
		}

		select {
		case <-ctx.Done():
			return v, false
		case <-q.notify:
		}
	}
}

// Drain removes and returns every queued value.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes blocked consumers. Values already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
