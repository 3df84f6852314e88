package hash

import (
	"crypto/sha256"
	"encoding/binary"
)

// Seed derives a 64-bit generator seed from a user seed and a list of
// identity parts (substation, feeder, purpose tag). The result depends only
// on its inputs, so allocations are reproducible across runs and machines.
func Seed(base int64, parts ...string) uint64 {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(base))
	h.Write(buf[:])

	for _, p := range parts {
		// length prefix keeps ("ab","c") distinct from ("a","bc")
		binary.BigEndian.PutUint64(buf[:], uint64(len(p)))
		h.Write(buf[:])
		h.Write([]byte(p))
	}

	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
