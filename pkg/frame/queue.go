// Package frame provides the concurrent FIFO queues that connect the Halo
// capture, upload, and playback loops.
//
// The central type is [Queue], an unbounded first-in-first-out queue that is
// safe for concurrent pushes and pops without external locking. Consumers can
// block on [Queue.Pop] until an item arrives — there is no busy-waiting — and
// producers never block. [Queue.Clear] discards everything currently queued,
// which is how an interrupt drops pending voice clips before they play.
//
// This package lives under pkg/ because external capture collaborators
// (microphone and camera adapters) are expected to push [Frame] values into
// queues owned by the application.
package frame

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by [Queue.Push] and [Queue.Pop] after [Queue.Close].
var ErrClosed = errors.New("frame: queue is closed")

// Queue is an unbounded, internally-synchronised FIFO queue.
//
// Pushes never block. Pop blocks until an item is available, the supplied
// context is cancelled, or the queue is closed. Insertion order is preserved
// exactly; no reordering is ever applied.
//
// All methods are safe for concurrent use.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// notEmpty carries at most one pending wake-up for a blocked Pop.
	// A lost signal is harmless: Pop re-checks the queue before sleeping.
	notEmpty chan struct{}

	// done is closed exactly once by Close and wakes every blocked Pop.
	done     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates an empty [Queue].
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notEmpty: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Push appends v to the tail of the queue and wakes a blocked [Queue.Pop],
// if any. Push never blocks. Returns [ErrClosed] after [Queue.Close].
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// TryPop removes and returns the head of the queue without blocking.
// The second return value is false when the queue is empty or closed.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.closed || len(q.items) == 0 {
		return zero, false
	}
	return q.popLocked(), true
}

// Pop removes and returns the head of the queue, blocking until an item is
// available. It returns ctx.Err() when ctx is cancelled and [ErrClosed] when
// the queue is closed while empty. Items pushed before Close are still
// delivered.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.popLocked()
			q.mu.Unlock()
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.done:
			// Re-check: items pushed just before Close must still drain.
		case <-q.notEmpty:
		}
	}
}

// Clear discards all queued items and returns how many were dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all blocked Pop calls. Items already
// queued remain poppable; further pushes fail with [ErrClosed]. Safe to call
// more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.stopOnce.Do(func() {
		close(q.done)
	})
}

// popLocked removes the head item. Caller must hold q.mu and have verified
// the queue is non-empty.
func (q *Queue[T]) popLocked() T {
	v := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return v
}

// signal delivers a non-blocking wake-up to at most one waiting Pop.
func (q *Queue[T]) signal() {
	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}
