package codec

import "github.com/ValentinKolb/dSync/lib/store"

// Batch is the unit of exchange between replicas: a mapping of keys to
// entries. Both full snapshots and diffs are serialized batches; the two are
// indistinguishable on the wire and are merged the same way.
type Batch = map[string]store.Entry

// ISnapshotCodec is the interface for all batch/snapshot serializers
type ISnapshotCodec interface {
	// Serialize serializes a Batch into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(batch Batch) ([]byte, error)
	// Deserialize deserializes a byte array into a Batch
	// It takes a byte array and a pointer to a Batch as parameters
	// It returns an error if any
	Deserialize(b []byte, batch *Batch) error
}
