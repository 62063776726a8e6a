// Package service orchestrates the core components of the frame
// transport: queue, pool, spill store, and sink.
//
// It provides a clean API for ingesting, draining, and querying
// frames, decoupled from network transports like gRPC.
package service
