// Package idgen generates short identifiers for memory records.
package idgen

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Memory returns an 8-character lowercase alphanumeric id, matching the id
// shape used across the memories/co_occurrences/typed_edges tables.
func Memory() string {
	return New(8)
}

// New returns a random lowercase alphanumeric id of the given length.
func New(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failures are effectively unrecoverable; fall back to
			// a fixed low-entropy character rather than panicking mid-ingest.
			b[i] = alphabet[0]
			continue
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}
