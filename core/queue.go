package core

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO with many producers and one consumer. Add never
// blocks, so it is safe to call from notification callbacks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items:  make([]T, 0),
		signal: make(chan struct{}, 1),
	}
}

func (q *Queue[T]) Add(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryTake removes the oldest item without blocking.
func (q *Queue[T]) TryTake() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Take blocks until an item is available or ctx is done. Once ctx is done no
// item is returned, even if some are queued.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		if v, ok := q.TryTake(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
