// Package spill persists frames that the queue refused at its
// segment ceiling. Records keep arrival order under monotonically
// increasing keys so a later drain re-enqueues them FIFO.
package spill

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"chute/frame"
)

const keyPrefix = "frame/"

// Store is a durable overflow buffer backed by pebble.
type Store struct {
	db  *pebble.DB
	seq atomic.Uint64
}

// Open opens (or creates) the store and recovers the last assigned
// sequence so new records sort after everything already spilled.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // durability is the whole point
	})
	if err != nil {
		return nil, fmt.Errorf("open spill store: %w", err)
	}

	s := &Store{db: db}
	if err := s.recoverSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) recoverSeq() error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() && iter.Valid() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		s.seq.Store(seq)
	}
	return iter.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put encodes and persists one frame.
func (s *Store) Put(f *frame.Frame) error {
	seq := s.seq.Add(1)
	return s.db.Set(keyFor(seq), frame.Encode(f), pebble.Sync)
}

// Drain walks spilled records oldest-first, handing each encoded
// record to fn. Records fn accepts are deleted in one batch; an
// error stops the walk and leaves the rest (including the record fn
// rejected) spilled. Returns the count replayed.
func (s *Store) Drain(fn func(rec []byte) error) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	replayed := 0
	var walkErr error
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			walkErr = err
			break
		}
		key := append([]byte(nil), iter.Key()...)
		if err := batch.Delete(key, nil); err != nil {
			walkErr = err
			break
		}
		replayed++
	}
	if err := iter.Error(); err != nil && walkErr == nil {
		walkErr = err
	}
	if err := iter.Close(); err != nil && walkErr == nil {
		walkErr = err
	}

	if replayed > 0 {
		if err := batch.Commit(pebble.Sync); err != nil {
			return 0, err
		}
	}
	return replayed, walkErr
}

// Count iterates the spilled range. Diagnostic only.
func (s *Store) Count() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(key []byte) (uint64, error) {
	raw := strings.TrimPrefix(string(key), keyPrefix)
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse spill key %q: %w", key, err)
	}
	return seq, nil
}
