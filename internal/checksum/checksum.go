// Package checksum computes content digests used for optimistic concurrency
// on the note write path. The sync engine does not use checksums; it diffs
// freshness signals instead.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
