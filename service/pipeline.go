package service

import (
	"context"
	"errors"
	"sync/atomic"

	"chute/frame"
	"chute/infra/spill"
	"chute/pool"
	"chute/queue"
)

/*
Pipeline is the ONLY write entry point into the transport core.

All coordination between:
- the lock-free queue
- the frame pool
- the spill store
- the downstream sink
happens here.
*/

// ErrBackpressure is returned when the queue is at its segment
// ceiling and the frame could not be spilled either.
var ErrBackpressure = errors.New("service: queue full, frame dropped")

// Sink receives drained frames. infra/kafka.Producer implements it;
// tests substitute their own.
type Sink interface {
	Send(ctx context.Context, f *frame.Frame) error
	Close() error
}

type Pipeline struct {
	q     *queue.Queue[*frame.Frame]
	pool  *pool.Pool[frame.Frame]
	spill *spill.Store
	sink  Sink

	ingested atomic.Uint64
	drained  atomic.Uint64
	spilled  atomic.Uint64
	replayed atomic.Uint64
	dropped  atomic.Uint64
}

// Stats is a racy snapshot of pipeline counters, for diagnostics.
type Stats struct {
	QueueDepth    int
	Segments      int
	PoolAvailable int
	Ingested      uint64
	Drained       uint64
	Spilled       uint64
	Replayed      uint64
	Dropped       uint64
}

// NewPipeline wires all dependencies. spill and sink may be nil; a
// nil spill turns ceiling hits into drops, a nil sink makes Drain
// discard into the pool only.
func NewPipeline(
	q *queue.Queue[*frame.Frame],
	p *pool.Pool[frame.Frame],
	st *spill.Store,
	sink Sink,
) *Pipeline {
	return &Pipeline{
		q:     q,
		pool:  p,
		spill: st,
		sink:  sink,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// AcquireFrame hands a producer an empty frame from the pool.
func (s *Pipeline) AcquireFrame() *frame.Frame {
	return s.pool.Acquire()
}

// Ingest takes ownership of f and enqueues it. A queue at its
// segment ceiling is not fatal: the frame spills to disk and is
// recycled. Only when spilling also fails is the frame dropped and
// ErrBackpressure returned.
func (s *Pipeline) Ingest(f *frame.Frame) error {
	if f == nil {
		return nil
	}
	if s.q.Push(f) {
		s.ingested.Add(1)
		return nil
	}

	if s.spill != nil {
		if err := s.spill.Put(f); err == nil {
			s.spilled.Add(1)
			s.pool.Release(f)
			return nil
		}
	}

	s.dropped.Add(1)
	s.pool.Release(f)
	return ErrBackpressure
}

// Drain pops up to max frames, publishes each to the sink and
// recycles it. Returns the count drained. A sink error re-enqueues
// the frame (or spills it when the queue refuses) and stops the
// batch.
func (s *Pipeline) Drain(ctx context.Context, max int) (int, error) {
	for i := 0; i < max; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		f, ok := s.q.Pop()
		if !ok {
			return i, nil
		}
		if s.sink != nil {
			if err := s.sink.Send(ctx, f); err != nil {
				if !s.q.Push(f) {
					if s.spill != nil && s.spill.Put(f) == nil {
						s.spilled.Add(1)
					} else {
						s.dropped.Add(1)
					}
					s.pool.Release(f)
				}
				return i, err
			}
		}
		s.pool.Release(f)
		s.drained.Add(1)
	}
	return max, nil
}

// ReplaySpill moves spilled frames back into the queue, oldest
// first. Stops at the segment ceiling; whatever could not be
// re-enqueued stays spilled for the next attempt.
func (s *Pipeline) ReplaySpill(ctx context.Context) (int, error) {
	if s.spill == nil {
		return 0, nil
	}
	return s.spill.Drain(func(rec []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := s.pool.Acquire()
		if err := frame.Decode(rec, f); err != nil {
			s.pool.Release(f)
			return err
		}
		if !s.q.Push(f) {
			s.pool.Release(f)
			return ErrBackpressure
		}
		s.replayed.Add(1)
		return nil
	})
}

// AdvanceEpoch nudges segment reclamation; called from a periodic
// maintenance job.
func (s *Pipeline) AdvanceEpoch() {
	s.q.AdvanceEpoch()
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *Pipeline) Stats() Stats {
	return Stats{
		QueueDepth:    s.q.Len(),
		Segments:      s.q.Segments(),
		PoolAvailable: s.pool.Available(),
		Ingested:      s.ingested.Load(),
		Drained:       s.drained.Load(),
		Spilled:       s.spilled.Load(),
		Replayed:      s.replayed.Load(),
		Dropped:       s.dropped.Load(),
	}
}
