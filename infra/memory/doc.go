// Package memory provides the low-level primitives for safe
// reclamation of shared structures: epoch tracking for in-flight
// operations and a retire ring that quarantines detached objects
// until no operation can still reference them.
//
// The memory package is dependency-light and forms the foundation
// for segment recycling in the queue.
package memory
