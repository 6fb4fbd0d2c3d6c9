// Package cqueue provides the asynchronous commit queue that moves large
// merge operations off the synchronous caller path.
//
// The gossip receiver submits remotely fetched snapshots here instead of
// applying them inline, so a slow decode of a large peer snapshot never
// stalls a synchronization tick. The queue is bounded and applies explicit
// backpressure: a full queue blocks the producer rather than dropping data,
// preserving at-least-once application of every submitted write.
package cqueue
