// Package pool recycles a fixed universe of heap objects through a
// lock-free queue to avoid allocation churn in steady state.
package pool

import (
	"chute/queue"
)

// Pool holds up to size recyclable objects in a backing queue.
// Capacity is advisory: Acquire never fails, it falls back to a
// fresh allocation when the pool is observed empty, so more than
// size objects can be outstanding at once.
type Pool[T any] struct {
	free  *queue.Queue[*T]
	ctor  func() *T
	reset func(*T)
	size  int
}

// New pre-populates the pool with size freshly constructed objects.
// reset returns an object to its canonical empty state on release;
// it may be nil when no cleanup is needed.
func New[T any](size int, ctor func() *T, reset func(*T)) *Pool[T] {
	if size <= 0 {
		panic("pool.New: size must be positive")
	}
	p := &Pool[T]{
		free:  queue.New[*T](queue.WithSegmentSize(segmentSizeFor(size))),
		ctor:  ctor,
		reset: reset,
		size:  size,
	}
	for i := 0; i < size; i++ {
		p.free.Push(ctor())
	}
	return p
}

// segmentSizeFor seeds the backing queue so the whole pool fits in
// one segment in the common case.
func segmentSizeFor(size int) int {
	n := queue.DefaultSegmentSize
	for n < size {
		n *= 2
	}
	return n
}

// Acquire transfers ownership of one pooled object to the caller,
// constructing a fresh one when none is available.
func (p *Pool[T]) Acquire() *T {
	if v, ok := p.free.Pop(); ok {
		return v
	}
	return p.ctor()
}

// Release resets v and returns it to the pool. Releasing nil returns
// false without side effects, as does a failed push on the backing
// queue.
func (p *Pool[T]) Release(v *T) bool {
	if v == nil {
		return false
	}
	if p.reset != nil {
		p.reset(v)
	}
	return p.free.Push(v)
}

// Available returns the current count of recyclable objects.
// Diagnostic only; stale by the time it is read elsewhere.
func (p *Pool[T]) Available() int {
	return p.free.Len()
}

// Capacity returns the advisory pool size fixed at construction.
func (p *Pool[T]) Capacity() int {
	return p.size
}

// Preallocate tops the pool up with at most n freshly constructed
// objects, never past capacity. Outstanding objects are undisturbed.
func (p *Pool[T]) Preallocate(n int) {
	for i := 0; i < n; i++ {
		if p.free.Len() >= p.size {
			return
		}
		if !p.free.Push(p.ctor()) {
			return
		}
	}
}
