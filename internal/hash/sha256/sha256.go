// Package sha256 names archived snapshots by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements posting.Hasher using SHA-256.
type Hasher struct {
	// Length truncates the hex digest when positive.
	Length int
}

// New returns a SHA-256 hasher producing full-length digests.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.Length > 0 && h.Length < len(digest) {
		digest = digest[:h.Length]
	}
	return digest, nil
}
