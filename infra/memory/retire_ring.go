package memory

import "sync/atomic"

// RetireRing parks retired objects until their retirement epoch is
// safe, then hands them back for reuse. Park order is FIFO, so
// retirement epochs are non-decreasing front to back: if the front
// entry is not yet safe, nothing behind it is either.
//
// Both ends are guarded by a single try-lock. Callers that lose the
// race simply skip the ring: dropping a retired object to the GC is
// always safe, parking it is only an optimization.
type RetireRing[T any] struct {
	owner atomic.Uint32

	head uint64
	tail uint64
	buf  []retired[T]
	mask uint64
}

type retired[T any] struct {
	val   T
	epoch uint64
}

// NewRetireRing allocates a fixed-size circular buffer (power-of-2 length).
func NewRetireRing[T any](size uint64) *RetireRing[T] {
	if size&(size-1) != 0 {
		panic("memory.RetireRing: size must be power of two")
	}
	return &RetireRing[T]{
		buf:  make([]retired[T], size),
		mask: size - 1,
	}
}

// TryPark stores v with its retirement epoch. Returns false when the
// ring is full or another goroutine holds it; the caller should then
// let v go unreferenced.
func (r *RetireRing[T]) TryPark(v T, epoch uint64) bool {
	if !r.owner.CompareAndSwap(0, 1) {
		return false
	}
	defer r.owner.Store(0)

	if r.head-r.tail == uint64(len(r.buf)) {
		return false
	}
	r.buf[r.head&r.mask] = retired[T]{val: v, epoch: epoch}
	r.head++
	return true
}

// TryReclaim pops the oldest parked object if its epoch is at or
// below safe. Returns false when nothing is reclaimable yet or the
// ring is held by another goroutine.
func (r *RetireRing[T]) TryReclaim(safe uint64) (zero T, _ bool) {
	if !r.owner.CompareAndSwap(0, 1) {
		return zero, false
	}
	defer r.owner.Store(0)

	if r.tail == r.head {
		return zero, false
	}
	slot := &r.buf[r.tail&r.mask]
	if slot.epoch > safe {
		// FIFO: everything behind is newer.
		return zero, false
	}
	v := slot.val
	*slot = retired[T]{}
	r.tail++
	return v, true
}

// Len returns the number of parked objects.
func (r *RetireRing[T]) Len() int {
	if !r.owner.CompareAndSwap(0, 1) {
		return 0
	}
	defer r.owner.Store(0)
	return int(r.head - r.tail)
}
