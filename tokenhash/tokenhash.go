// Package tokenhash implements the token hashing and bucket-disambiguation
// scheme of spec.md §4.2: tokens are hashed to 64 bits with SHA-256, then
// reduced modulo the bucket count. The hash function is a binary-format
// contract — changing it breaks every existing index — so it is fixed by
// spec rather than configurable.
package tokenhash

import "crypto/sha256"

// AllDocumentsToken is the reserved empty-string token inserted alongside
// every document (spec.md §4.2) to support "all documents" scans and
// negation. It always hashes to bucket 0 by convention.
const AllDocumentsToken = ""

// Hash64 takes the last 64 bits of SHA-256(token) as a big-endian integer.
// Implementations must use this exact construction to preserve binary
// compatibility with existing indexes (spec.md §4.2). The reserved
// all-documents token is special-cased to the constant 0 by convention
// (spec.md §4.2: "the empty-string token hashes by convention to 0"),
// rather than computed from SHA-256, so it always lands in bucket 0
// regardless of hash-function details.
func Hash64(token string) uint64 {
	if token == AllDocumentsToken {
		return 0
	}
	sum := sha256.Sum256([]byte(token))
	var v uint64
	for _, b := range sum[len(sum)-8:] {
		v = v<<8 | uint64(b)
	}
	return v
}

// BucketID reduces a token hash to a bucket index.
func BucketID(hash uint64, numBuckets uint64) uint64 {
	return hash % numBuckets
}
