// Package store defines the contract of the versioned, conflict-resolving
// key-value store that every other component of the agent shares by
// reference. It combines the replicated record type (Entry), the store
// interface (IStore) and a unified error reporting system.
//
// The package focuses on:
//   - A unified interface (IStore) for versioned key-value operations across
//     different backends
//   - Last-writer-wins conflict resolution keyed on the entry creation
//     timestamp, which is deterministic, commutative and idempotent and thus
//     independent of the order in which concurrent updates arrive
//   - Pluggable storage backend architecture through the Factory pattern
//
// Key Components:
//
//   - Entry: the replicated record consisting of an opaque value, the
//     creation timestamp used as conflict tie-breaker, and an optional
//     absolute expiry. Expiry governs visibility only; retention until the
//     next purge sweep is an implementation concern of the backend.
//
//   - IStore Interface: the core abstraction defining get/set/diff/snapshot/
//     version operations. All serialized blobs crossing this interface are
//     opaque to their carriers; only the store interprets their structure.
//
//   - Error System: a structured error reporting mechanism using typed error
//     codes and descriptive messages. A decode failure of an incoming blob is
//     reported as RetCDecodeError to the immediate caller and never mutates
//     the store.
//
// Implementations:
//
//	The in-memory reference implementation lives in the mstore subpackage.
//	The asynchronous commit queue that decouples large merges from the
//	read path lives in the cqueue subpackage.
package store
