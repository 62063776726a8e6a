// Package queue implements a segment-based lock-free unbounded FIFO
// for multiple producers and consumers. Elements live in fixed-size
// array chunks chained by atomic next pointers; the chain grows at
// the tail by doubling segment sizes and shrinks from the head as
// segments drain.
//
// Nothing ever blocks: Push returns false only at the configured
// segment ceiling, Pop returns false only on an empty chain, and
// callers needing bounded waiting poll from outside.
package queue
