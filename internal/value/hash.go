package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashing.
// Version suffix enables future algorithm migration.
const (
	DomainState    = "reim/state/v1"
	DomainSnapshot = "reim/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a state value.
// Structurally equal values (per canonical JSON) hash identically.
func Hash(v Value) (string, error) {
	return HashDomain(DomainState, v)
}

// HashDomain hashes v under an explicit domain prefix.
func HashDomain(domain string, v Value) (string, error) {
	canonical, err := marshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when the value is known to be valid.
func MustHash(v Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
