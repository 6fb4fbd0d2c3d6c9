// Package gossip implements the anti-entropy protocol that drives divergent
// replicas toward the same state.
//
// Two independent loops run for the lifetime of the process:
//
//   - Publisher (push-diff): every push interval, if the store version moved
//     since the last publication, computes the diff against the previously
//     published snapshot (falling back to the full snapshot when no diff can
//     be computed) and pushes it to a random sample of peers.
//
//   - Receiver (pull-full): every pull interval, sends the local version to
//     a random sample of peers and merges the full snapshot of every peer
//     whose version differs, through the asynchronous commit queue.
//
// The two loops sample independently and bound both their per-tick fan-out
// (the r0 configuration value) and their in-flight peer requests. A peer
// timing out, refusing the connection or returning malformed data costs
// exactly that peer's contribution to the current tick and nothing else.
//
// The protocol offers no ordering guarantees across peers; convergence rests
// entirely on the commutative, idempotent last-writer-wins merge of the
// store. Within one store a merged batch becomes visible atomically.
package gossip
