package thor

import (
	"hash"

	"golang.org/x/crypto/blake2b"
)

// NewBlake2b returns a new 256-bit Blake2b hasher, the hash function used
// for every block and root digest in the ledger.
func NewBlake2b() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors for an out-of-range key length; nil
		// key is always valid.
		panic(err)
	}
	return h
}

// Blake2b256 hashes the concatenation of parts and returns the digest as
// a Bytes32.
func Blake2b256(parts ...[]byte) Bytes32 {
	h := NewBlake2b()
	for _, p := range parts {
		h.Write(p)
	}
	var out Bytes32
	h.Sum(out[:0])
	return out
}
