package pool

import (
	"sync"
	"testing"
)

type buffer struct {
	id   int
	data []byte
}

func newBufferPool(size int) *Pool[buffer] {
	next := 0
	return New(size,
		func() *buffer {
			next++
			return &buffer{id: next}
		},
		func(b *buffer) { b.data = b.data[:0] },
	)
}

func TestPoolPrepopulated(t *testing.T) {
	p := newBufferPool(3)
	if got := p.Available(); got != 3 {
		t.Errorf("Available = %d, want 3", got)
	}
	if got := p.Capacity(); got != 3 {
		t.Errorf("Capacity = %d, want 3", got)
	}
}

// The worked example: POOL_SIZE = 3, four acquires with no releases.
// The first three return pre-allocated objects, the fourth a fresh
// one, and Available reaches 0 and stays there.
func TestAcquireBeyondCapacity(t *testing.T) {
	p := newBufferPool(3)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		b := p.Acquire()
		if b == nil {
			t.Fatal("acquire returned nil")
		}
		if seen[b.id] {
			t.Errorf("object %d handed out twice", b.id)
		}
		seen[b.id] = true
	}
	if got := p.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	// Pool exhausted: a fourth acquire still yields a valid object.
	b := p.Acquire()
	if b == nil {
		t.Fatal("acquire on exhausted pool returned nil")
	}
	if seen[b.id] {
		t.Error("exhausted pool returned a previously acquired object")
	}
	if got := p.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	p := newBufferPool(2)

	b := p.Acquire()
	b.data = append(b.data, 1, 2, 3)
	if !p.Release(b) {
		t.Fatal("release failed")
	}
	if got := p.Available(); got != 2 {
		t.Errorf("Available = %d, want 2 after round trip", got)
	}

	// The reset hook must have run before requeueing.
	for i := 0; i < 2; i++ {
		if got := p.Acquire(); len(got.data) != 0 {
			t.Errorf("recycled object not reset: len(data) = %d", len(got.data))
		}
	}
}

func TestReleaseNil(t *testing.T) {
	p := newBufferPool(1)
	if p.Release(nil) {
		t.Error("releasing nil should return false")
	}
	if got := p.Available(); got != 1 {
		t.Errorf("Available = %d, want 1 (nil release must not disturb state)", got)
	}
}

func TestPreallocate(t *testing.T) {
	p := newBufferPool(4)

	a, b := p.Acquire(), p.Acquire()
	if got := p.Available(); got != 2 {
		t.Fatalf("Available = %d, want 2", got)
	}

	p.Preallocate(10)
	if got := p.Available(); got != 4 {
		t.Errorf("Available = %d, want 4 (topped up to capacity)", got)
	}

	// Outstanding objects are undisturbed and still releasable.
	if !p.Release(a) || !p.Release(b) {
		t.Error("release of outstanding objects failed")
	}
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	p := newBufferPool(8)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				b := p.Acquire()
				if b == nil {
					t.Error("acquire returned nil")
					return
				}
				b.data = append(b.data, byte(i))
				p.Release(b)
			}
		}()
	}
	wg.Wait()

	if got := p.Available(); got < 8 {
		t.Errorf("Available = %d, want at least the initial 8", got)
	}
}
