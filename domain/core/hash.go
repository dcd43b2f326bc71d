package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash is a hex-encoded SHA-256 digest
type Hash string

// NewHash creates a hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

func (h Hash) String() string {
	return string(h)
}

// IsEmpty reports whether the hash was never computed
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex digits, enough for logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Fingerprint hashes the canonical JSON encoding of the given parts. Map keys are
// encoded in sorted order, so equal values always produce equal fingerprints.
func Fingerprint(parts ...interface{}) (Hash, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("fingerprint part %d: %w", i, err)
		}
	}
	return Hash(hex.EncodeToString(h.Sum(nil))), nil
}
