// Package util provides hashing utilities shared by the store and the
// synchronization layer.
//
// The package contains:
//   - functions: FNV-1a based hash functions, seed generation and the
//     commutative XOR fold used to derive order-independent store versions
//
// The version fold is load-bearing for replica convergence: two stores that
// hold the same (key, createdAt) pairs must report the same version string
// regardless of the order in which the entries were merged.
package util
