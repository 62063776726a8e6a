package memory

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Epochs tracks which in-flight operations may still hold references
// to retired objects. Every queue operation pins the running epoch
// with Enter/Exit; a retired object becomes reclaimable once the
// global epoch has moved two steps past its retirement epoch.
//
// At any instant, pinned guards belong to the current epoch or the
// one before it: Advance refuses to move past an epoch whose readers
// have not all exited.
type Epochs struct {
	global atomic.Uint64
	active [2]parityCount
}

type parityCount struct {
	n atomic.Int64
	_ cpu.CacheLinePad
}

// NewEpochs starts the global epoch at 2 so Safe never underflows
// and nothing parked is reclaimable before two advances.
func NewEpochs() *Epochs {
	e := &Epochs{}
	e.global.Store(2)
	return e
}

// Enter pins the current epoch and returns it.
// The returned value must be handed back to Exit.
func (e *Epochs) Enter() uint64 {
	for {
		g := e.global.Load()
		e.active[g&1].n.Add(1)
		// The increment must land on the epoch that is still
		// current; if it moved, undo and re-pin.
		if e.global.Load() == g {
			return g
		}
		e.active[g&1].n.Add(-1)
	}
}

// Exit releases a pin taken by Enter.
func (e *Epochs) Exit(epoch uint64) {
	e.active[epoch&1].n.Add(-1)
}

// Advance bumps the global epoch if every reader of the previous
// epoch has exited. Returns true when the epoch moved.
func (e *Epochs) Advance() bool {
	g := e.global.Load()
	if e.active[(g+1)&1].n.Load() != 0 {
		return false
	}
	return e.global.CompareAndSwap(g, g+1)
}

// Current returns the running global epoch.
func (e *Epochs) Current() uint64 {
	return e.global.Load()
}

// Safe returns the newest epoch whose retired objects can no longer
// be referenced by any pinned guard.
func (e *Epochs) Safe() uint64 {
	return e.global.Load() - 2
}
