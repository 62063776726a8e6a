package queue

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// unreadySpins bounds how long a popper waits on a slot that has
// been claimed but whose write is not yet published.
const unreadySpins = 128

// segment is a fixed-capacity chunk of the queue with independent
// claim/head cursors, forming a node in a singly linked chain.
//
// Producers reserve a slot with fetch-and-add on claim, write the
// element, then publish the slot by storing the segment generation
// into its ready mark. Consumers advance head by CAS, and only over
// slots whose ready mark matches the current generation. Decoupling
// the claimed cursor from per-slot visibility means racing producers
// can never write the same slot.
//
// Once claim reaches capacity the segment never accepts writes
// again, regardless of later pops. head only grows; a popped slot is
// never revisited within a generation. The generation counter is
// bumped when a reclaimed segment is reset, which invalidates every
// stale ready mark without touching the array.
type segment[T any] struct {
	claim atomic.Uint64
	_     cpu.CacheLinePad
	head  atomic.Uint64
	_     cpu.CacheLinePad

	gen  atomic.Uint32
	next atomic.Pointer[segment[T]]

	buf   []T
	ready []atomic.Uint32
}

func newSegment[T any](capacity int) *segment[T] {
	s := &segment[T]{
		buf:   make([]T, capacity),
		ready: make([]atomic.Uint32, capacity),
	}
	s.gen.Store(1)
	return s
}

func (s *segment[T]) capacity() uint64 { return uint64(len(s.buf)) }

// claimed clamps the claim cursor to capacity. Racing producers can
// overshoot claim past capacity; the overshoot only ever means "full".
func (s *segment[T]) claimed() uint64 {
	c := s.claim.Load()
	if max := s.capacity(); c > max {
		return max
	}
	return c
}

// tryPush reserves a slot and publishes v into it.
// Returns false when the segment is full.
func (s *segment[T]) tryPush(v T) bool {
	g := s.gen.Load()
	c := s.claim.Add(1) - 1
	if c >= s.capacity() {
		return false
	}
	s.buf[c] = v
	s.ready[c].Store(g)
	return true
}

// tryPop claims the head slot and moves its element out.
// Returns false when the segment is empty, or when the head slot's
// publish is still in flight after a bounded wait.
func (s *segment[T]) tryPop() (zero T, _ bool) {
	g := s.gen.Load()
	spins := 0
	for {
		h := s.head.Load()
		if h >= s.claimed() {
			return zero, false
		}
		if s.ready[h].Load() != g {
			// Claimed but not yet published.
			if spins++; spins > unreadySpins {
				return zero, false
			}
			runtime.Gosched()
			continue
		}
		if s.head.CompareAndSwap(h, h+1) {
			v := s.buf[h]
			s.buf[h] = zero
			return v, true
		}
	}
}

// full reports whether the segment will never accept another write.
func (s *segment[T]) full() bool { return s.claim.Load() >= s.capacity() }

// drained reports whether every slot has been pushed and popped.
func (s *segment[T]) drained() bool { return s.head.Load() >= s.capacity() }

func (s *segment[T]) empty() bool { return s.head.Load() >= s.claimed() }

// size and remaining are racy snapshots for diagnostics only.
func (s *segment[T]) size() uint64 {
	h, c := s.head.Load(), s.claimed()
	if h >= c {
		return 0
	}
	return c - h
}

func (s *segment[T]) remaining() uint64 { return s.capacity() - s.claimed() }

// reset prepares a segment for reuse. Only safe with exclusive
// access: unpopped elements are dropped, cursors rewind, and the
// generation bump invalidates every stale ready mark.
func (s *segment[T]) reset() {
	var zero T
	for i := s.head.Load(); i < s.claimed(); i++ {
		s.buf[i] = zero
	}
	s.head.Store(0)
	s.claim.Store(0)
	if s.gen.Add(1) == 0 {
		s.gen.Store(1)
	}
	s.next.Store(nil)
}
