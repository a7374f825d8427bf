// Package checksum computes the content digest recorded with every
// release.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Archive returns the SHA-256 digest of the raw uploaded archive bytes as
// a lowercase hex string. The digest covers the upload as received, never
// the extracted tree, so it stays stable no matter how extraction evolves.
func Archive(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
