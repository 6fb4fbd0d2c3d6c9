// Package exchange implements the peer-to-peer wire surface of the agent.
//
// Every agent exposes the same two-operation HTTP endpoint:
//
//	GET /{version}  version-conditional snapshot fetch. The path component
//	                is the requester's current version (possibly empty); the
//	                responder returns its full serialized snapshot with 200
//	                when the versions differ and 204 with no body when they
//	                match.
//	PUT /           snapshot/diff push. The body is an opaque exchange blob
//	                that is merged into the local store; 204 on success, 422
//	                when the blob cannot be decoded.
//
// The exchange protocol never inspects blob contents, it only moves bytes
// between a store and the network. GET /metrics additionally exposes process
// metrics in Prometheus text format.
//
// The client side bounds every request with a single timeout covering
// connect and response; slow or unreachable peers are abandoned for the
// current gossip tick and never abort it.
package exchange
