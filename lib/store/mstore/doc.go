// Package mstore provides the in-memory reference implementation of the
// store.IStore interface.
//
// The implementation keeps one map of key to entry guarded by a
// reader-writer lock. Every mutation path in the process (agent writes,
// commit-queue merges, purge sweeps) takes the write lock; reads share the
// read lock. Snapshot and diff computation only hold the read lock long
// enough to copy the visible entries, the serialization happens outside.
//
// Conflict resolution is last-writer-wins on the entry creation timestamp:
// an incoming entry replaces the stored one only when its CreatedAt is
// strictly greater. The rule is deterministic, commutative and idempotent,
// which is what makes replicas converge no matter in which order concurrent
// updates arrive.
//
// The store version is a lazily cached, order-independent XOR fold over the
// (key, CreatedAt) pairs of the visible entries. A dirty flag set by any
// accepting merge invalidates the cache; purging expired (and therefore
// already invisible) entries does not.
//
// Lifecycle is two-phase: NewMemoryStore constructs a passive store,
// Activate starts the background purge sweep, Close stops it. Hidden
// goroutine creation as a side effect of construction is intentionally
// avoided.
package mstore
