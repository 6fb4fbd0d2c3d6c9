package store

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Entry Type
// --------------------------------------------------------------------------

// Entry is a single replicated record. The value is an opaque byte blob that
// is never interpreted by the store or the synchronization layer.
//
// CreatedAt is assigned once, at the first commit of the key anywhere in the
// cluster, and travels with the value across every replica. It is the
// last-writer-wins tie-breaker: of all entries ever merged for a key, the one
// with the greatest CreatedAt is kept.
//
// ExpiresAt is an absolute expiry timestamp; zero means the entry never
// expires. Expired entries are invisible to reads but may physically remain
// in the store until the next purge sweep.
//
// Both timestamps are unix milliseconds.
type Entry struct {
	Value     []byte `json:"value"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Expired returns whether the entry is expired at the given point in time.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixMilli() >= e.ExpiresAt
}

// NewerThan returns true if e should replace other.
// Only a strictly greater creation timestamp wins, so replaying an already
// merged entry is always a no-op.
func (e Entry) NewerThan(other Entry) bool {
	return e.CreatedAt > other.CreatedAt
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Factory is a function type that creates a new store.
// This is used to abstract the creation of the store from its consumers, all
// backend specific configuration is captured by the closure.
type Factory func() IStore

// IStore is the generic interface for a versioned, conflict-resolving
// key-value store. All write operations return only an error (nil on
// success), while read operations return the requested data along with an
// error (nil on success).
//
// Serialized blobs returned by GetRoot and Diff, and accepted by Set and
// Diff, are opaque to every other component: only the store (through its
// configured codec) interprets their structure.
type IStore interface {
	// Get returns the value for a key. The boolean return value indicates
	// whether a visible (non-expired) value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// GetOr returns the value for a key, or def if the key is absent or
	// expired.
	GetOr(key string, def []byte) (value []byte, err error)
	// Set decodes blob into a batch of key->Entry pairs and merges it with
	// last-writer-wins semantics. The whole batch is applied atomically:
	// partial-batch visibility is never observed by concurrent readers.
	// A blob that cannot be decoded yields a RetCDecodeError and performs
	// no mutation.
	Set(blob []byte) (err error)
	// Diff computes the entries that differ from a previously captured
	// snapshot blob. If the baseline is absent or undecodable the full
	// current snapshot is returned instead of an error.
	Diff(baseline []byte) (blob []byte, err error)
	// GetRoot serializes every currently visible entry.
	GetRoot() (blob []byte, err error)
	// Version returns a string derived deterministically and
	// order-independently from the (key, CreatedAt) pairs of all visible
	// entries. It is cached and only recomputed after a mutation.
	Version() (version string, err error)
	// Purge removes entries whose expiry has elapsed and reports how many
	// were dropped. Purging never changes the version: expired entries were
	// already excluded from version computation.
	Purge() (removed int, err error)
	// Len returns the number of visible entries.
	Len() (n int, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := "Unknown"
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCDecodeError:
		errorCode = "DecodeError"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	}

	return fmt.Sprintf("StoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// IsDecodeError reports whether err is a store Error carrying
// RetCDecodeError. It is used by the exchange endpoint to map decode
// failures to the 422 status code.
func IsDecodeError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == RetCDecodeError
	}
	return false
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCDecodeError                     // 2: Input blob could not be decoded, no mutation performed.
	RetCInvalidOperation                // 3: Invalid operation.
)
