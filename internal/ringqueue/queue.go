// Package ringqueue implements a fixed-capacity ring buffer with
// overwrite-on-full producer semantics and non-blocking consumer semantics.
//
// It is modeled on the cursor arithmetic of
// github.com/joeycumines/go-catrate's ringBuffer (catrate/ring.go), but
// generalized from constraints.Ordered scalars to arbitrary records, since
// queued PV elements are opaque fixed-size structs rather than ordered
// values, and specialized to the fixed-capacity (no growth) and
// overwrite-oldest behavior a PV queue needs instead of catrate's
// grow-on-insert rate-window behavior.
package ringqueue

// Queue is a fixed-capacity FIFO of elements of type T. It is not safe for
// concurrent use; callers serialize access with their own lock (in this
// module, the owning channel's queue lock).
type Queue[T any] struct {
	buf   []T
	r, w  int
	count int
}

// New creates a Queue with the given fixed capacity. Panics if capacity is
// not positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("ringqueue: capacity must be positive")
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Len returns the number of elements currently queued.
func (q *Queue[T]) Len() int { return q.count }

// Empty reports whether the queue holds no elements.
func (q *Queue[T]) Empty() bool { return q.count == 0 }

// Full reports whether the queue is at capacity.
func (q *Queue[T]) Full() bool { return q.count == len(q.buf) }

// Put inserts v at the tail. If the queue was already full, the oldest
// element is dropped to make room and overwrote is true.
func (q *Queue[T]) Put(v T) (overwrote bool) {
	if q.count == len(q.buf) {
		q.buf[q.w] = v
		q.w = q.next(q.w)
		q.r = q.w
		return true
	}
	q.buf[q.w] = v
	q.w = q.next(q.w)
	q.count++
	return false
}

// Get non-blockingly removes and returns the head element. ok is false if
// the queue was empty, in which case v is the zero value.
func (q *Queue[T]) Get() (v T, ok bool) {
	if q.count == 0 {
		return v, false
	}
	v = q.buf[q.r]
	var zero T
	q.buf[q.r] = zero
	q.r = q.next(q.r)
	q.count--
	return v, true
}

// Flush discards every queued element and reports how many were removed.
func (q *Queue[T]) Flush() int {
	n := q.count
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.r, q.w, q.count = 0, 0, 0
	return n
}

func (q *Queue[T]) next(i int) int {
	i++
	if i == len(q.buf) {
		i = 0
	}
	return i
}
