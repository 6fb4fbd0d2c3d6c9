// Package codec provides serialization of exchange batches for the gossip
// synchronization system. It defines a common interface and multiple
// implementations for turning a batch of entries into the opaque blob that
// travels between replicas, and back.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Keeping the blob structure private to the store: every other layer
//     (gossip loops, exchange endpoint, agent shim) moves blobs around
//     without interpreting them
//
// Key Components:
//
//   - ISnapshotCodec: Core interface that all codec implementations must
//     satisfy. Full snapshots and diffs share one representation; a diff is
//     simply a smaller batch.
//
//   - jsonCodecImpl: Implementation using JSON encoding, human-readable and
//     interoperable, the default.
//
//   - gobCodecImpl: Implementation using Go's built-in gob encoding, more
//     compact for large binary values.
//
// Thread Safety:
//
//	All codec implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package codec
