// Package slotreq implements the one-shot one-slot request handoff design
// note from the engine's rewrite of the original per-variable binary
// semaphore plus outstanding-request-pointer pattern: instead of a raw
// semaphore paired with a raw pointer, a Slot bundles both into a single
// generic type, with the channel itself acting as the binary semaphore.
package slotreq

import "context"

// Slot serializes access to a single (state set, variable) pending-request
// slot and carries the request value across the handoff. A newly created
// Slot is available. TryAcquire/Acquire claim it (mirroring a semaphore
// pend); Release returns it (mirroring a semaphore post). Store/Take manage
// the request value carried while the slot is held.
//
// The same acquire/release pair that serializes issuance is reused, by
// design, as the completion signal: the completion callback calls Release
// without calling Take, and the waiter (getComplete, or the SYNC path)
// performs a second Acquire to observe that post before finally clearing
// the slot and releasing it for the next caller.
type Slot[T any] struct {
	sem chan struct{}
	val chan T
}

// New returns an available Slot.
func New[T any]() *Slot[T] {
	s := &Slot[T]{
		sem: make(chan struct{}, 1),
		val: make(chan T, 1),
	}
	s.sem <- struct{}{}
	return s
}

// TryAcquire performs a non-blocking claim, for the ASYNC contention check.
func (s *Slot[T]) TryAcquire() bool {
	select {
	case <-s.sem:
		return true
	default:
		return false
	}
}

// Acquire blocks until the slot is available or ctx is done, for the SYNC
// pre-issue wait and the SYNC post-issue completion wait.
func (s *Slot[T]) Acquire(ctx context.Context) bool {
	select {
	case <-s.sem:
		return true
	case <-ctx.Done():
		return false
	}
}

// Release returns the slot, posting the semaphore for the next caller (or
// signaling completion to whoever holds the slot and is waiting on a
// second Acquire).
func (s *Slot[T]) Release() {
	select {
	case s.sem <- struct{}{}:
	default:
	}
}

// Store records the in-flight request value.
func (s *Slot[T]) Store(v T) {
	select {
	case <-s.val:
	default:
	}
	s.val <- v
}

// Take clears and returns the recorded request value, if any.
func (s *Slot[T]) Take() (v T, ok bool) {
	select {
	case v = <-s.val:
		return v, true
	default:
		return v, false
	}
}

// Peek returns the recorded request value without clearing it.
func (s *Slot[T]) Peek() (v T, ok bool) {
	select {
	case v = <-s.val:
		s.val <- v
		return v, true
	default:
		return v, false
	}
}
