package queue

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"chute/infra/memory"
)

const (
	// DefaultSegmentSize is the capacity of the first segment.
	DefaultSegmentSize = 64

	// DefaultMaxSegments bounds the live chain; Push fails rather
	// than grow past it.
	DefaultMaxSegments = 1024

	// maxSegmentCapacity caps the doubling growth of a single
	// segment. The segment-count ceiling is the real memory bound;
	// this only keeps individual allocations sane.
	maxSegmentCapacity = 1 << 15

	retireRingSize = 64
)

// Queue is an unbounded multi-producer/multi-consumer FIFO built
// from a chain of growing segments. All operations are non-blocking:
// Push fails only at the segment-count ceiling, Pop fails only when
// the whole chain is observed empty.
//
// Detached segments are quarantined in an epoch-guarded retire ring
// and recycled once no in-flight operation can still reference them.
type Queue[T any] struct {
	head atomic.Pointer[segment[T]]
	_    cpu.CacheLinePad
	tail atomic.Pointer[segment[T]]
	_    cpu.CacheLinePad

	segs atomic.Int64

	epochs  *memory.Epochs
	retired *memory.RetireRing[*segment[T]]

	segSize int
	maxSegs int
}

// New creates a queue with one initial segment.
func New[T any](opts ...Option) *Queue[T] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	q := &Queue[T]{
		epochs:  memory.NewEpochs(),
		retired: memory.NewRetireRing[*segment[T]](retireRingSize),
		segSize: cfg.segmentSize,
		maxSegs: cfg.maxSegments,
	}
	first := newSegment[T](cfg.segmentSize)
	q.head.Store(first)
	q.tail.Store(first)
	q.segs.Store(1)
	return q
}

// Push enqueues v. It returns false only when the segment-count
// ceiling is hit; transient contention is absorbed by the CAS-retry
// loop, so contended pushers always make forward progress.
func (q *Queue[T]) Push(v T) bool {
	e := q.epochs.Enter()
	defer q.epochs.Exit(e)

	for {
		t := q.tail.Load()
		if t.tryPush(v) {
			return true
		}
		next := t.next.Load()
		if next == nil {
			if q.segs.Load() >= int64(q.maxSegs) {
				return false
			}
			ns := q.grabSegment(nextCapacity(len(t.buf)))
			if t.next.CompareAndSwap(nil, ns) {
				q.segs.Add(1)
				q.tail.CompareAndSwap(t, ns)
				continue
			}
			// Lost the append race; hand the allocation back.
			q.parkSegment(ns)
			next = t.next.Load()
		}
		// Help the appender along so no pusher waits on another.
		q.tail.CompareAndSwap(t, next)
	}
}

// Pop dequeues the oldest element. It returns false only when the
// entire chain is drained at the instant of observation.
func (q *Queue[T]) Pop() (zero T, _ bool) {
	e := q.epochs.Enter()
	defer q.epochs.Exit(e)

	for {
		h := q.head.Load()
		v, ok := h.tryPop()
		if ok {
			if h.drained() && h.next.Load() != nil {
				q.retireHead(h)
			}
			return v, true
		}
		if h.next.Load() == nil {
			return zero, false
		}
		if !h.drained() {
			// A claimed slot's publish is still in flight; the
			// element belongs to a push that has not returned yet.
			return zero, false
		}
		q.retireHead(h)
	}
}

// retireHead detaches a drained head segment and parks it for reuse.
// Retirement is opportunistic cleanup: a failed CAS means another
// popper already advanced the head.
func (q *Queue[T]) retireHead(h *segment[T]) {
	next := h.next.Load()
	if next == nil {
		return
	}
	// Never leave tail pointing at a detached segment.
	if q.tail.Load() == h {
		q.tail.CompareAndSwap(h, next)
	}
	if q.head.CompareAndSwap(h, next) {
		q.segs.Add(-1)
		q.parkSegment(h)
		q.epochs.Advance()
	}
}

// grabSegment reuses a quarantined segment of matching capacity when
// one is safe, and allocates otherwise.
func (q *Queue[T]) grabSegment(capacity int) *segment[T] {
	if s, ok := q.retired.TryReclaim(q.epochs.Safe()); ok {
		if len(s.buf) == capacity {
			s.reset()
			return s
		}
		// Wrong size; the GC takes it.
	}
	return newSegment[T](capacity)
}

func (q *Queue[T]) parkSegment(s *segment[T]) {
	_ = q.retired.TryPark(s, q.epochs.Current())
}

func nextCapacity(prev int) int {
	c := prev * 2
	if c > maxSegmentCapacity {
		c = maxSegmentCapacity
	}
	return c
}

// Empty reports whether the queue was empty at the instant of
// observation. Best-effort snapshot, not consistent with concurrent
// mutators.
func (q *Queue[T]) Empty() bool {
	h := q.head.Load()
	return h == q.tail.Load() && h.empty()
}

// Len walks the live chain summing segment sizes. O(segments), for
// diagnostics and capacity planning only.
func (q *Queue[T]) Len() int {
	n := 0
	for s := q.head.Load(); s != nil; s = s.next.Load() {
		n += int(s.size())
	}
	return n
}

// Segments returns the live segment count.
func (q *Queue[T]) Segments() int {
	return int(q.segs.Load())
}

// AdvanceEpoch nudges the reclamation epoch forward. Retirement does
// this opportunistically; a periodic caller keeps recycling moving
// when the queue goes idle.
func (q *Queue[T]) AdvanceEpoch() bool {
	return q.epochs.Advance()
}

// Clear collapses the chain back to the current head segment and
// rewinds it. Only safe when the caller has exclusive access; there
// must be no concurrent pushers or poppers.
func (q *Queue[T]) Clear() {
	h := q.head.Load()
	h.reset()
	q.tail.Store(h)
	q.segs.Store(1)
}

// PushBulk pushes items until the first failure and returns the
// count actually pushed. No atomicity across the batch is implied.
func (q *Queue[T]) PushBulk(items []T) int {
	for i, v := range items {
		if !q.Push(v) {
			return i
		}
	}
	return len(items)
}

// PopBulk fills dst until the queue is observed empty and returns
// the count actually popped.
func (q *Queue[T]) PopBulk(dst []T) int {
	for i := range dst {
		v, ok := q.Pop()
		if !ok {
			return i
		}
		dst[i] = v
	}
	return len(dst)
}
