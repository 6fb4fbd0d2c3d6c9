// Package peers provides peer membership and sampling for the gossip layer.
//
// The package contains:
//   - Peer: a host or host+port pair; a missing port is resolved by the
//     consumer through the fallback chain explicit port -> configured target
//     port -> local listening port
//   - IPeerProvider: the pluggable membership contract (idempotent Init,
//     concurrently callable Get)
//   - a static provider fed from configuration and an mDNS provider that
//     announces and discovers agents on the local network
//   - Sampler: draws a bounded uniform random subset of the membership per
//     synchronization tick, independently for the publish and pull loops
//
// Bounding the per-tick fan-out (the r0 configuration value) is what keeps
// the network cost of a gossip round constant regardless of cluster size.
package peers
