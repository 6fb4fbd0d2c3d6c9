package util

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a robust random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fallback with the current time as a last resort
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString generates a hash value for a string with a seed
// This function uses the FNV-1a hash algorithm, which is fast and has good distribution
func HashString(s string, seed uint64) uint64 {

	// FNV-1a hash with seed incorporation
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	// Start with the offset combined with the seed for uniqueness
	hash := uint64(offset64) ^ seed

	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}

	return hash
}

// HashEntry hashes a (key, createdAt) pair into a single uint64.
// The timestamp is mixed into the key hash so that re-creating a key
// with a different creation time always yields a different hash.
func HashEntry(key string, createdAt int64) uint64 {
	return HashString(fmt.Sprintf("%s\x00%d", key, createdAt), 0)
}

// FoldHashes combines per-entry hashes into a single digest via XOR.
// XOR is commutative and associative, therefore the result is independent
// of the iteration order of the underlying map.
func FoldHashes(hashes ...uint64) uint64 {
	var acc uint64
	for _, h := range hashes {
		acc ^= h
	}
	return acc
}

// FormatDigest renders a folded hash as the canonical version string.
func FormatDigest(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}
