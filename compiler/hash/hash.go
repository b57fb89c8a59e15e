// Package hash computes content hashes of compiled programs. Two sources
// that differ only in comments hash identically.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/bfqbe/compiler"
)

// Hash computes the SHA-256 content hash of the program compiled from src
// with opts. The hash covers the optimized run stream and the generator
// options, so it identifies the emitted IR exactly.
func Hash(src string, opts compiler.Options) ([32]byte, error) {
	data, err := Serialize(src, opts)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Hex renders a hash as lowercase hexadecimal.
func Hex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
