/*
Package agent implements the endpoint local applications use to read and
write replicated state.

The surface is deliberately thin. Applications get single values or write
batch blobs, and everything else (versioning, diffing, gossip rounds,
expiry) stays inside the replication engine. An application that talks to
its local agent therefore works the same on every node, regardless of
which peers are currently reachable.

Writes merge with last-writer-wins semantics just like replicated writes,
so an application can never lose a newer remote value by re-submitting an
old one.
*/
package agent
