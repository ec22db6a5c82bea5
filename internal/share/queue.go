package share

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Push on a full DropNew queue.
var ErrQueueFull = errors.New("queue full")

// Overflow selects what Push does when the queue is full.
type Overflow int

const (
	// DropNew rejects the pushed item and keeps the queue unchanged.
	DropNew Overflow = iota
	// OverwriteOldest discards the oldest item to make room.
	OverwriteOldest
)

func (o Overflow) String() string {
	switch o {
	case DropNew:
		return "drop_new"
	case OverwriteOldest:
		return "overwrite_oldest"
	default:
		return fmt.Sprintf("Overflow(%d)", int(o))
	}
}

// Queue is a bounded, non-blocking FIFO ring buffer.
// The same single-goroutine rule as Flag applies.
type Queue[T any] struct {
	name    string
	buf     []T
	head    int // index of the oldest item
	n       int
	policy  Overflow
	dropped uint64
}

// NewQueue creates a queue holding at most capacity items (minimum 1).
// The overflow policy is fixed for the queue's lifetime.
func NewQueue[T any](name string, capacity int, policy Overflow) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name:   name,
		buf:    make([]T, capacity),
		policy: policy,
	}
}

// Push appends v. On a full queue it either returns ErrQueueFull (DropNew)
// or overwrites the oldest item (OverwriteOldest). Both count as a drop.
func (q *Queue[T]) Push(v T) error {
	if q.n == len(q.buf) {
		q.dropped++
		if q.policy == DropNew {
			return ErrQueueFull
		}
		q.buf[q.head] = v
		q.head = (q.head + 1) % len(q.buf)
		return nil
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	return nil
}

// Pop removes and returns the oldest item. ok is false when empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	if q.n == 0 {
		return v, false
	}
	v = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, true
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (v T, ok bool) {
	if q.n == 0 {
		return v, false
	}
	return q.buf[q.head], true
}

// Items returns a copy of the queued items, oldest first.
func (q *Queue[T]) Items() []T {
	out := make([]T, q.n)
	for i := 0; i < q.n; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

// Clear empties the queue. The drop counter is kept.
func (q *Queue[T]) Clear() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head, q.n = 0, 0
}

func (q *Queue[T]) Len() int         { return q.n }
func (q *Queue[T]) Cap() int         { return len(q.buf) }
func (q *Queue[T]) Empty() bool      { return q.n == 0 }
func (q *Queue[T]) Full() bool       { return q.n == len(q.buf) }
func (q *Queue[T]) Dropped() uint64  { return q.dropped }
func (q *Queue[T]) Name() string     { return q.name }
func (q *Queue[T]) Policy() Overflow { return q.policy }
