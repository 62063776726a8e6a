package queue

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPushPopFIFO(t *testing.T) {
	q := New[int]()
	for i := 1; i <= 100; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 1; i <= 100; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %v ok=%v", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop succeeded on empty queue")
	}
}

// The worked example: segment size 4, five pushes. The first segment
// holds four elements and is full; the second (capacity 8) holds the
// fifth. Draining retires the first segment and empties the queue.
func TestGrowthAcrossSegments(t *testing.T) {
	q := New[int](WithSegmentSize(4))

	for i := 1; i <= 5; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if got := q.Len(); got != 5 {
		t.Errorf("Len = %d, want 5", got)
	}
	if got := q.Segments(); got != 2 {
		t.Errorf("Segments = %d, want 2", got)
	}

	head := q.head.Load()
	if head.capacity() != 4 {
		t.Errorf("first segment capacity = %d, want 4", head.capacity())
	}
	if next := head.next.Load(); next == nil || next.capacity() != 8 {
		t.Error("second segment should exist with capacity 8")
	}

	for i := 1; i <= 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %v ok=%v", i, v, ok)
		}
	}
	if got := q.Segments(); got != 1 {
		t.Errorf("Segments after drain = %d, want 1 (first segment retired)", got)
	}
	if q.Len() != 0 || !q.Empty() {
		t.Error("queue should be empty after draining")
	}
}

func TestGrowthLawDoubling(t *testing.T) {
	q := New[int](WithSegmentSize(4))
	for i := 0; i < 4+8+16+1; i++ {
		q.Push(i)
	}

	want := uint64(4)
	for s := q.head.Load(); s != nil; s = s.next.Load() {
		if s.capacity() != want {
			t.Errorf("segment capacity = %d, want %d", s.capacity(), want)
		}
		want *= 2
	}
}

func TestCeilingEnforcement(t *testing.T) {
	q := New[int](WithSegmentSize(2), WithMaxSegments(2))

	// 2 + 4 slots before the ceiling bites.
	for i := 0; i < 6; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d failed below ceiling", i)
		}
	}
	if q.Push(6) {
		t.Error("push succeeded past the segment ceiling")
	}
	if q.Segments() != 2 {
		t.Errorf("Segments = %d, want 2", q.Segments())
	}
}

func TestGrowthResumesAfterRetirement(t *testing.T) {
	q := New[int](WithSegmentSize(2), WithMaxSegments(2))
	for i := 0; i < 6; i++ {
		q.Push(i)
	}
	if q.Push(99) {
		t.Fatal("queue should be at ceiling")
	}

	// Draining retires the head segment, freeing a slot in the count.
	for i := 0; i < 6; i++ {
		if v, ok := q.Pop(); !ok || v != i {
			t.Fatalf("pop %d: got %v ok=%v", i, v, ok)
		}
	}
	if !q.Push(99) {
		t.Error("push failed after retirement made room")
	}
	if v, ok := q.Pop(); !ok || v != 99 {
		t.Errorf("got %v ok=%v, want 99", v, ok)
	}
}

func TestEmptyAndLen(t *testing.T) {
	q := New[string]()
	if !q.Empty() || q.Len() != 0 {
		t.Error("fresh queue should be empty")
	}
	q.Push("a")
	if q.Empty() || q.Len() != 1 {
		t.Error("queue with one element should not be empty")
	}
	q.Pop()
	if !q.Empty() {
		t.Error("queue should be empty again")
	}
}

func TestClear(t *testing.T) {
	q := New[int](WithSegmentSize(2))
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	q.Clear()

	if q.Len() != 0 || !q.Empty() {
		t.Error("Clear should empty the queue")
	}
	if q.Segments() != 1 {
		t.Errorf("Segments after Clear = %d, want 1", q.Segments())
	}

	// The collapsed queue must still work.
	q.Push(42)
	if v, ok := q.Pop(); !ok || v != 42 {
		t.Errorf("got %v ok=%v, want 42", v, ok)
	}
}

func TestBulkOperations(t *testing.T) {
	q := New[int](WithSegmentSize(4))

	in := []int{1, 2, 3, 4, 5, 6, 7}
	if n := q.PushBulk(in); n != len(in) {
		t.Fatalf("PushBulk = %d, want %d", n, len(in))
	}

	out := make([]int, 5)
	if n := q.PopBulk(out); n != 5 {
		t.Fatalf("PopBulk = %d, want 5", n)
	}
	for i, v := range out {
		if v != i+1 {
			t.Errorf("out[%d] = %d, want %d", i, v, i+1)
		}
	}

	// Asking for more than remains stops at the first failure.
	big := make([]int, 10)
	if n := q.PopBulk(big); n != 2 {
		t.Errorf("PopBulk = %d, want 2", n)
	}
}

func TestBulkStopsAtCeiling(t *testing.T) {
	q := New[int](WithSegmentSize(2), WithMaxSegments(1))
	in := []int{1, 2, 3, 4}
	if n := q.PushBulk(in); n != 2 {
		t.Errorf("PushBulk = %d, want 2 (ceiling)", n)
	}
}

// Per-producer FIFO: with one consumer, every producer's stream must
// come out in its own order even while producers interleave.
func TestPerProducerOrderingMPSC(t *testing.T) {
	const producers = 4
	const perProducer = 5000

	q := New[uint64](WithSegmentSize(64))

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid uint64) {
			defer wg.Done()
			for i := uint64(0); i < perProducer; i++ {
				for !q.Push(pid<<32 | i) {
				}
			}
		}(uint64(p))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var lastSeen [producers]int64
	for i := range lastSeen {
		lastSeen[i] = -1
	}
	popped := 0
	prodsDone := false
	for popped < producers*perProducer {
		v, ok := q.Pop()
		if !ok {
			// An empty observation after every push completed
			// means elements were lost.
			if prodsDone {
				t.Fatalf("queue drained early: popped %d", popped)
			}
			select {
			case <-done:
				prodsDone = true
			default:
			}
			continue
		}
		pid := v >> 32
		seq := int64(v & 0xffffffff)
		if seq <= lastSeen[pid] {
			t.Fatalf("producer %d: seq %d after %d", pid, seq, lastSeen[pid])
		}
		lastSeen[pid] = seq
		popped++
	}
}

// At-most-once delivery under full MPMC contention: every pushed
// value must be popped exactly once.
func TestExactlyOnceMPMC(t *testing.T) {
	const producers = 4
	const consumers = 4
	const perProducer = 5000
	const total = producers * perProducer

	q := New[int](WithSegmentSize(32))

	seen := make([]atomic.Int32, total)
	var popped atomic.Int64

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(pid*perProducer + i) {
				}
			}
		}(p)
	}
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for popped.Load() < total {
				v, ok := q.Pop()
				if !ok {
					continue
				}
				if seen[v].Add(1) != 1 {
					t.Errorf("value %d delivered more than once", v)
					return
				}
				popped.Add(1)
			}
		}()
	}
	wg.Wait()

	for v := range seen {
		if seen[v].Load() != 1 {
			t.Fatalf("value %d delivered %d times", v, seen[v].Load())
		}
	}
}

// Segment recycling under churn must never corrupt delivery. Small
// segments force constant retirement while epochs advance.
func TestRecyclingChurn(t *testing.T) {
	q := New[int](WithSegmentSize(8))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				q.AdvanceEpoch()
			}
		}
	}()

	const rounds = 200
	const batch = 100
	for r := 0; r < rounds; r++ {
		for i := 0; i < batch; i++ {
			if !q.Push(r*batch + i) {
				t.Fatalf("push failed in round %d", r)
			}
		}
		for i := 0; i < batch; i++ {
			v, ok := q.Pop()
			if !ok || v != r*batch+i {
				t.Fatalf("round %d: got %v ok=%v, want %d", r, v, ok, r*batch+i)
			}
		}
	}
	close(stop)
	wg.Wait()
}
