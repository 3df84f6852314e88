// Package hash provides the SHA-256 helpers gridmix relies on for
// reproducibility: checksums of every file written into a scenario
// instance (recorded in its provenance) and stable seeds for the
// randomized allocations, derived from user seeds and feeder identity.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher computes content checksums.
type Hasher interface {
	// HashBytes computes the checksum of data.
	HashBytes(data []byte) string
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashBytes computes the hex SHA-256 of data.
func (h *SHA256Hasher) HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FakeHasher returns "fake-<len>" checksums for testing, or a fixed
// checksum for registered contents.
type FakeHasher struct {
	hashes map[string]string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the checksum returned for data.
func (h *FakeHasher) SetHash(data, hash string) {
	h.hashes[data] = hash
}

func (h *FakeHasher) HashBytes(data []byte) string {
	if hash, ok := h.hashes[string(data)]; ok {
		return hash
	}
	return fmt.Sprintf("fake-%d", len(data))
}
